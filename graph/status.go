package graph

// Status is the design-time lifecycle of a graph.
type Status string

const (
	// StatusNew means the graph has been created but not yet activated.
	StatusNew Status = "NEW"
	// StatusActive means the graph is ready to execute.
	StatusActive Status = "ACTIVE"
	// StatusArchived means the graph has been retired and cannot execute.
	StatusArchived Status = "ARCHIVED"
)

// CanTransitionTo reports whether a graph may move from the current status to
// the target. Self-transitions are legal (idempotent); ARCHIVED is terminal.
// Callers encountering an illegal transition must treat it as a no-op,
// never an error; the run status machine follows the same rule.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	switch s {
	case StatusNew:
		return target == StatusActive || target == StatusArchived
	case StatusActive:
		return target == StatusArchived
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }
