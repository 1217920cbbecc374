package types

import (
	"strings"
	"time"
)

// NodeKind tags a graph node as a plan or a task. Every edge in an agent
// graph alternates kinds: PLAN -> TASK or TASK -> PLAN.
type NodeKind string

const (
	// NodeKindPlan is a plan node. A plan consumes upstream task results and
	// decides a runtime subset of task names to run next.
	NodeKindPlan NodeKind = "PLAN"
	// NodeKindTask is a task node. A task consumes its single upstream plan's
	// result and feeds zero or more downstream plans.
	NodeKindTask NodeKind = "TASK"
)

// Valid reports whether the kind is one of the two known node kinds.
func (k NodeKind) Valid() bool {
	return k == NodeKindPlan || k == NodeKindTask
}

// ExecutionStatus is the terminal outcome reported by a node executor.
type ExecutionStatus string

const (
	// ExecutionSucceeded indicates the node produced a result.
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"
	// ExecutionFailed indicates the node failed to produce a result.
	ExecutionFailed ExecutionStatus = "FAILED"
)

// ExecutionHeader identifies one node execution within one graph run.
type ExecutionHeader struct {
	TenantID   string          `json:"tenant_id"`
	GraphID    string          `json:"graph_id"`
	LifetimeID string          `json:"lifetime_id"`
	NodeName   string          `json:"node_name"`
	ExecID     string          `json:"exec_id"`
	Status     ExecutionStatus `json:"status"`
}

// HasRunContext reports whether the header carries the identifiers routing
// and lifecycle updates require.
func (h ExecutionHeader) HasRunContext() bool {
	return !isBlank(h.NodeName) && !isBlank(h.GraphID) && !isBlank(h.LifetimeID)
}

// ExecutionRecord is append-only evidence that a specific node instance
// succeeded or failed. Records are never revised once written; the run
// lifecycle engine and the routing pipeline both consume them.
type ExecutionRecord struct {
	Header    ExecutionHeader `json:"header"`
	Kind      NodeKind        `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	// ErrorMessage is set for failed executions.
	ErrorMessage string `json:"error_message,omitempty"`
	// NextTaskNames is the runtime-chosen subset of the plan's declared
	// downstream tasks. Populated only for a succeeded plan record.
	NextTaskNames []string `json:"next_task_names,omitempty"`
}

// Succeeded reports whether the record carries a successful outcome.
func (r ExecutionRecord) Succeeded() bool {
	return r.Header.Status == ExecutionSucceeded
}

// Failed reports whether the record carries a failed outcome.
func (r ExecutionRecord) Failed() bool {
	return r.Header.Status == ExecutionFailed
}

// PlanInput is the node input event consumed by a plan executor. For a
// bootstrap input (run submission) TaskExecutions is empty.
type PlanInput struct {
	InputID    string `json:"input_id"`
	PlanName   string `json:"plan_name"`
	GraphID    string `json:"graph_id"`
	LifetimeID string `json:"lifetime_id"`
	// TaskExecutions carries the upstream task evidence that triggered this
	// plan invocation.
	TaskExecutions []ExecutionRecord `json:"task_executions,omitempty"`
}

// TaskInput is the node input event consumed by a task executor.
type TaskInput struct {
	InputID    string `json:"input_id"`
	TaskName   string `json:"task_name"`
	GraphID    string `json:"graph_id"`
	LifetimeID string `json:"lifetime_id"`
	// PlanExecution carries the upstream plan evidence that selected this
	// task.
	PlanExecution *ExecutionRecord `json:"plan_execution,omitempty"`
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
