package run

// Status is the runtime status of one graph execution attempt.
type Status string

const (
	// StatusQueued means the run was accepted but bootstrap inputs are not
	// fully published yet.
	StatusQueued Status = "QUEUED"
	// StatusRunning means execution evidence is flowing through the runtime.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the run's entire invoked closure completed.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means at least one node execution failed.
	StatusFailed Status = "FAILED"
	// StatusCanceled means the run was canceled before completing.
	StatusCanceled Status = "CANCELED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a run may move from the current status to
// the target. Self-transitions are legal (idempotent). Terminal states admit
// nothing, including no re-entry into RUNNING. Callers encountering an
// illegal transition must treat it as a logged no-op, never an error: under
// concurrent, out-of-order delivery two handlers may race toward a terminal
// state, and the loser resolves the race here rather than by locking.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	switch s {
	case StatusQueued:
		return target == StatusRunning || target == StatusFailed || target == StatusCanceled
	case StatusRunning:
		return target == StatusSucceeded || target == StatusFailed || target == StatusCanceled
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }
