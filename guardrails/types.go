package guardrails

import (
	"context"

	"github.com/eigloo/agentgraph/types"
)

// Guardrail is a single policy gate over one execution record.
type Guardrail interface {
	// Evaluate returns the approval decision for the record.
	Evaluate(ctx context.Context, rec types.ExecutionRecord) (*Decision, error)
	// Name returns the guardrail name, used in logs and metrics.
	Name() string
	// Priority orders guardrails in a chain; lower runs earlier.
	Priority() int
}

// Decision is the outcome of one guardrail evaluation.
type Decision struct {
	Approved bool           `json:"approved"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Approve returns an approving decision.
func Approve() *Decision {
	return &Decision{Approved: true}
}

// Reject returns a rejecting decision with the given reason.
func Reject(reason string) *Decision {
	return &Decision{Approved: false, Reason: reason}
}

// WithMetadata attaches a metadata value to the decision.
func (d *Decision) WithMetadata(key string, value any) *Decision {
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	d.Metadata[key] = value
	return d
}

// GuardrailFunc adapts a function into a Guardrail with priority 0.
type GuardrailFunc struct {
	GuardrailName string
	Fn            func(ctx context.Context, rec types.ExecutionRecord) (*Decision, error)
}

// Evaluate implements Guardrail.
func (g GuardrailFunc) Evaluate(ctx context.Context, rec types.ExecutionRecord) (*Decision, error) {
	return g.Fn(ctx, rec)
}

// Name implements Guardrail.
func (g GuardrailFunc) Name() string { return g.GuardrailName }

// Priority implements Guardrail.
func (g GuardrailFunc) Priority() int { return 0 }
