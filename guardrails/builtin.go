package guardrails

import (
	"context"
	"fmt"

	"github.com/eigloo/agentgraph/types"
)

// ExecutionCounter reports how many execution records a run has accumulated.
type ExecutionCounter interface {
	ListExecutions(ctx context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error)
}

// FanOutLimit rejects plan executions that announce more downstream
// tasks than the configured maximum.
type FanOutLimit struct {
	Max      int
	priority int
}

// NewFanOutLimit builds a FanOutLimit with the given cap and priority.
func NewFanOutLimit(max, priority int) *FanOutLimit {
	return &FanOutLimit{Max: max, priority: priority}
}

// Name implements Guardrail.
func (f *FanOutLimit) Name() string { return "fan_out_limit" }

// Priority implements Guardrail.
func (f *FanOutLimit) Priority() int { return f.priority }

// Evaluate implements Guardrail.
func (f *FanOutLimit) Evaluate(_ context.Context, rec types.ExecutionRecord) (*Decision, error) {
	if f.Max <= 0 || rec.Kind != types.NodeKindPlan {
		return Approve(), nil
	}
	if n := len(rec.NextTaskNames); n > f.Max {
		return Reject(fmt.Sprintf("plan %s announced %d next tasks, limit is %d",
			rec.Header.NodeName, n, f.Max)), nil
	}
	return Approve(), nil
}

// ErrorSizeLimit rejects records whose error message exceeds MaxBytes.
// Oversized messages usually mean an executor is dumping payloads into
// the error field; the lifecycle engine truncates what it stores, this
// guardrail refuses the record up front.
type ErrorSizeLimit struct {
	MaxBytes int
	priority int
}

// NewErrorSizeLimit builds an ErrorSizeLimit with the given cap and priority.
func NewErrorSizeLimit(maxBytes, priority int) *ErrorSizeLimit {
	return &ErrorSizeLimit{MaxBytes: maxBytes, priority: priority}
}

// Name implements Guardrail.
func (e *ErrorSizeLimit) Name() string { return "error_size_limit" }

// Priority implements Guardrail.
func (e *ErrorSizeLimit) Priority() int { return e.priority }

// Evaluate implements Guardrail.
func (e *ErrorSizeLimit) Evaluate(_ context.Context, rec types.ExecutionRecord) (*Decision, error) {
	if e.MaxBytes <= 0 {
		return Approve(), nil
	}
	if n := len(rec.ErrorMessage); n > e.MaxBytes {
		return Reject(fmt.Sprintf("record %s carries a %d byte error message, limit is %d",
			rec.Header.ExecID, n, e.MaxBytes)), nil
	}
	return Approve(), nil
}

// RecordBudget rejects executions once a run has accumulated more than
// MaxRecords execution records. Cyclic graphs re-trigger nodes forever
// without an external stop condition; the budget bounds that.
type RecordBudget struct {
	MaxRecords int
	counter    ExecutionCounter
	priority   int
}

// NewRecordBudget builds a RecordBudget backed by the given counter.
func NewRecordBudget(maxRecords int, counter ExecutionCounter, priority int) *RecordBudget {
	return &RecordBudget{MaxRecords: maxRecords, counter: counter, priority: priority}
}

// Name implements Guardrail.
func (b *RecordBudget) Name() string { return "record_budget" }

// Priority implements Guardrail.
func (b *RecordBudget) Priority() int { return b.priority }

// Evaluate implements Guardrail.
func (b *RecordBudget) Evaluate(ctx context.Context, rec types.ExecutionRecord) (*Decision, error) {
	if b.MaxRecords <= 0 || b.counter == nil {
		return Approve(), nil
	}
	records, err := b.counter.ListExecutions(ctx, rec.Header.TenantID, rec.Header.GraphID, rec.Header.LifetimeID)
	if err != nil {
		return nil, fmt.Errorf("count executions for run %s: %w", rec.Header.LifetimeID, err)
	}
	if len(records) > b.MaxRecords {
		return Reject(fmt.Sprintf("run %s exceeded execution budget of %d records",
			rec.Header.LifetimeID, b.MaxRecords)), nil
	}
	return Approve(), nil
}
