// Package graph implements the immutable agent-graph topology model: plan and
// task nodes, canonical kind-alternating edges, the adjacency queries the
// routing and lifecycle engines rely on, and the design-time graph status
// state machine.
//
// A graph is bipartite: edges connect PLAN -> TASK or TASK -> PLAN only, and
// a task has at most one upstream plan. Both invariants are enforced at
// construction time; a constructed AgentGraph never changes. Cycles across
// the plan/task alternation are allowed; completion detection is a local,
// incremental closure check, not a DAG schedule.
package graph
