package run

import (
	"context"
	"time"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/types"
)

// GraphRun is one execution attempt of a graph, keyed by lifetime ID. It is
// created at submission time (or as a self-healing placeholder) and mutated
// only by the lifecycle engine; this core never deletes runs.
type GraphRun struct {
	LifetimeID string `json:"lifetime_id"`
	TenantID   string `json:"tenant_id"`
	GraphID    string `json:"graph_id"`
	Status     Status `json:"status"`
	// EntryPlanNames is the snapshot of the graph's entry plans taken at
	// submission time; completion detection checks against this snapshot,
	// not against a later graph version.
	EntryPlanNames []string   `json:"entry_plan_names,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the run.
func (r *GraphRun) Clone() *GraphRun {
	if r == nil {
		return nil
	}
	clone := *r
	if r.EntryPlanNames != nil {
		clone.EntryPlanNames = append([]string(nil), r.EntryPlanNames...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		clone.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

// Sentinel errors returned by the store interfaces below.
var (
	// ErrRunNotFound is returned by RunStore.GetRun for an unknown run.
	ErrRunNotFound = types.NewError(types.ErrRunNotFound, "graph run not found")
	// ErrGraphNotFound is returned by GraphLookup.GetGraph for an unknown graph.
	ErrGraphNotFound = types.NewError(types.ErrGraphNotFound, "graph not found")
)

// RunStore is the run persistence the lifecycle engine needs. SaveRun is the
// unit of atomicity for concurrent handlers of the same lifetime ID; races
// that slip past it are resolved by the no-op-on-terminal rule, not by
// locking in this engine.
type RunStore interface {
	// GetRun resolves a run by (tenantID, lifetimeID). Returns ErrRunNotFound
	// when absent.
	GetRun(ctx context.Context, tenantID, lifetimeID string) (*GraphRun, error)
	// SaveRun creates or updates a run.
	SaveRun(ctx context.Context, r *GraphRun) error
}

// ExecutionStore is the append-only execution evidence the completion check
// reads.
type ExecutionStore interface {
	// ListExecutions returns every execution record persisted for the run, in
	// creation order.
	ListExecutions(ctx context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error)
}

// GraphLookup resolves graph topology by (tenantID, graphID).
type GraphLookup interface {
	// GetGraph returns the graph, or ErrGraphNotFound when absent.
	GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error)
}
