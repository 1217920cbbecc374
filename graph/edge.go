package graph

import (
	"strings"

	"github.com/eigloo/agentgraph/types"
)

// GraphEdge is a canonical directed edge connecting a plan node and a task
// node. Edges are the graph's only topology storage; no separate adjacency
// structure is authoritative.
type GraphEdge struct {
	From     string         `json:"from"`
	FromKind types.NodeKind `json:"from_kind"`
	To       string         `json:"to"`
	ToKind   types.NodeKind `json:"to_kind"`
}

// NewEdge builds a validated edge. It fails with a topology error when an
// endpoint name is blank, a kind is unknown, or both endpoints share a kind.
func NewEdge(from string, fromKind types.NodeKind, to string, toKind types.NodeKind) (GraphEdge, error) {
	e := GraphEdge{From: from, FromKind: fromKind, To: to, ToKind: toKind}
	if err := e.validate(); err != nil {
		return GraphEdge{}, err
	}
	return e, nil
}

// PlanToTask builds a PLAN -> TASK edge.
func PlanToTask(planName, taskName string) (GraphEdge, error) {
	return NewEdge(planName, types.NodeKindPlan, taskName, types.NodeKindTask)
}

// TaskToPlan builds a TASK -> PLAN edge.
func TaskToPlan(taskName, planName string) (GraphEdge, error) {
	return NewEdge(taskName, types.NodeKindTask, planName, types.NodeKindPlan)
}

func (e GraphEdge) validate() error {
	if strings.TrimSpace(e.From) == "" {
		return types.NewError(types.ErrTopology, "edge source cannot be empty")
	}
	if strings.TrimSpace(e.To) == "" {
		return types.NewError(types.ErrTopology, "edge target cannot be empty")
	}
	if !e.FromKind.Valid() || !e.ToKind.Valid() {
		return types.NewErrorf(types.ErrTopology, "edge %s -> %s has unknown node kind", e.From, e.To)
	}
	if e.FromKind == e.ToKind {
		return types.NewErrorf(types.ErrTopology,
			"edge %s -> %s must connect PLAN->TASK or TASK->PLAN, got %s->%s",
			e.From, e.To, e.FromKind, e.ToKind)
	}
	return nil
}

// isPlanToTask reports whether the edge runs PLAN -> TASK.
func (e GraphEdge) isPlanToTask() bool {
	return e.FromKind == types.NodeKindPlan && e.ToKind == types.NodeKindTask
}

// isTaskToPlan reports whether the edge runs TASK -> PLAN.
func (e GraphEdge) isTaskToPlan() bool {
	return e.FromKind == types.NodeKindTask && e.ToKind == types.NodeKindPlan
}
