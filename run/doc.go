// Package run implements the graph-run lifecycle: the run status state
// machine, the GraphRun record, the lifecycle engine that consumes persisted
// execution evidence, and the completion-detection algorithm.
//
// The engine holds no central plan cursor. Each persisted execution record is
// processed independently, possibly out of order; completion is re-evaluated
// from the full record set every time, which makes the answer monotonic and
// arrival-order independent. Anomalies (unknown runs, illegal transitions,
// duplicate terminal evidence) are absorbed as logged no-ops so a single
// malformed or racing message can never destabilize a run.
package run
