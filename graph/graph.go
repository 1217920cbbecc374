package graph

import (
	"strings"

	"github.com/eigloo/agentgraph/types"
)

// NodeFile is an opaque implementation artifact attached to a plan or task.
// The runtime never interprets file contents; they are carried for the
// external node executor.
type NodeFile struct {
	Name     string `json:"name"`
	Contents string `json:"contents,omitempty"`
}

// Plan is a plan node declaration. Topology lives in the graph's edge list,
// not on the node.
type Plan struct {
	Name  string     `json:"name"`
	Label string     `json:"label,omitempty"`
	Files []NodeFile `json:"files,omitempty"`
}

// Task is a task node declaration.
type Task struct {
	Name  string     `json:"name"`
	Label string     `json:"label,omitempty"`
	Files []NodeFile `json:"files,omitempty"`
}

// AgentGraph is an immutable view of one graph version: its plan and task
// nodes plus the ordered, deduplicated canonical edge list. Construction
// validates the topology invariants; edits produce a new graph, never an
// in-place mutation of one a run may be reading.
type AgentGraph struct {
	tenantID string
	id       string
	name     string
	status   Status
	plans    map[string]Plan
	tasks    map[string]Task
	edges    []GraphEdge
}

// New constructs a validated, immutable AgentGraph. It fails with a topology
// error when the name is blank, an edge violates the kind-alternation
// invariant, an edge endpoint names a node missing from the matching node
// map, or a task would acquire more than one upstream plan. Duplicate edges
// are dropped, first occurrence wins.
func New(tenantID, id, name string, plans map[string]Plan, tasks map[string]Task, edges []GraphEdge) (*AgentGraph, error) {
	if strings.TrimSpace(name) == "" {
		return nil, types.NewError(types.ErrTopology, "graph name cannot be empty")
	}

	g := &AgentGraph{
		tenantID: tenantID,
		id:       id,
		name:     name,
		status:   StatusNew,
		plans:    make(map[string]Plan, len(plans)),
		tasks:    make(map[string]Task, len(tasks)),
		edges:    make([]GraphEdge, 0, len(edges)),
	}
	for name, p := range plans {
		g.plans[name] = p
	}
	for name, t := range tasks {
		g.tasks[name] = t
	}

	upstreamByTask := make(map[string]string)
	seen := make(map[GraphEdge]struct{}, len(edges))
	for _, e := range edges {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		if err := g.checkEndpoint(e.From, e.FromKind); err != nil {
			return nil, err
		}
		if err := g.checkEndpoint(e.To, e.ToKind); err != nil {
			return nil, err
		}
		if e.isPlanToTask() {
			if prev, ok := upstreamByTask[e.To]; ok && prev != e.From {
				return nil, types.NewErrorf(types.ErrTopology,
					"task %q has multiple upstream plans: %q and %q", e.To, prev, e.From)
			}
			upstreamByTask[e.To] = e.From
		}
		g.edges = append(g.edges, e)
	}

	return g, nil
}

func (g *AgentGraph) checkEndpoint(name string, kind types.NodeKind) error {
	switch kind {
	case types.NodeKindPlan:
		if _, ok := g.plans[name]; !ok {
			return types.NewErrorf(types.ErrTopology, "edge references unknown plan %q", name)
		}
	case types.NodeKindTask:
		if _, ok := g.tasks[name]; !ok {
			return types.NewErrorf(types.ErrTopology, "edge references unknown task %q", name)
		}
	}
	return nil
}

// TenantID returns the owning tenant.
func (g *AgentGraph) TenantID() string { return g.tenantID }

// ID returns the graph identifier.
func (g *AgentGraph) ID() string { return g.id }

// Name returns the graph name.
func (g *AgentGraph) Name() string { return g.name }

// Status returns the design-time lifecycle status.
func (g *AgentGraph) Status() Status { return g.status }

// WithStatus returns a copy of the graph carrying the given status. The
// receiver is unchanged; transition legality is the caller's concern (see
// Status.CanTransitionTo).
func (g *AgentGraph) WithStatus(status Status) *AgentGraph {
	clone := *g
	clone.status = status
	return &clone
}

// Plan returns the named plan node.
func (g *AgentGraph) Plan(name string) (Plan, bool) {
	p, ok := g.plans[name]
	return p, ok
}

// Task returns the named task node.
func (g *AgentGraph) Task(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// HasTask reports whether the graph declares a task with the given name.
func (g *AgentGraph) HasTask(name string) bool {
	_, ok := g.tasks[name]
	return ok
}

// PlanNames returns all plan names.
func (g *AgentGraph) PlanNames() []string {
	names := make([]string, 0, len(g.plans))
	for name := range g.plans {
		names = append(names, name)
	}
	return names
}

// TaskNames returns all task names.
func (g *AgentGraph) TaskNames() []string {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	return names
}

// Edges returns a copy of the canonical edge list in declaration order.
func (g *AgentGraph) Edges() []GraphEdge {
	out := make([]GraphEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// DownstreamTasks returns the tasks reachable by one PLAN -> TASK edge from
// the named plan, in edge declaration order.
func (g *AgentGraph) DownstreamTasks(planName string) []string {
	var tasks []string
	for _, e := range g.edges {
		if e.isPlanToTask() && e.From == planName {
			tasks = append(tasks, e.To)
		}
	}
	return tasks
}

// UpstreamPlan returns the single plan with a PLAN -> TASK edge into the
// named task. The second result is false when the task has no upstream plan.
func (g *AgentGraph) UpstreamPlan(taskName string) (string, bool) {
	for _, e := range g.edges {
		if e.isPlanToTask() && e.To == taskName {
			return e.From, true
		}
	}
	return "", false
}

// DownstreamPlans returns the plans reachable by one TASK -> PLAN edge from
// the named task, in edge declaration order. The graph model permits a task
// to feed more than one plan, so this is a set, not a single name.
func (g *AgentGraph) DownstreamPlans(taskName string) []string {
	var plans []string
	for _, e := range g.edges {
		if e.isTaskToPlan() && e.From == taskName {
			plans = append(plans, e.To)
		}
	}
	return plans
}

// UpstreamTasks returns the tasks with a TASK -> PLAN edge into the named
// plan, in edge declaration order.
func (g *AgentGraph) UpstreamTasks(planName string) []string {
	var tasks []string
	for _, e := range g.edges {
		if e.isTaskToPlan() && e.To == planName {
			tasks = append(tasks, e.From)
		}
	}
	return tasks
}

// EntryPlans returns the plans with no incoming TASK -> PLAN edge. A run's
// execution starts at the set of entry plans.
func (g *AgentGraph) EntryPlans() []string {
	fed := make(map[string]struct{})
	for _, e := range g.edges {
		if e.isTaskToPlan() {
			fed[e.To] = struct{}{}
		}
	}
	var entries []string
	for name := range g.plans {
		if _, ok := fed[name]; !ok {
			entries = append(entries, name)
		}
	}
	return entries
}

// PlanCount returns the number of plan nodes.
func (g *AgentGraph) PlanCount() int { return len(g.plans) }

// TaskCount returns the number of task nodes.
func (g *AgentGraph) TaskCount() int { return len(g.tasks) }

// IsEmpty reports whether the graph declares no nodes.
func (g *AgentGraph) IsEmpty() bool {
	return len(g.plans) == 0 && len(g.tasks) == 0
}
