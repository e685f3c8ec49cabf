package job

// State represents the lifecycle of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transitions can leave the state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows s -> next.
// Pending may start running or end directly (cancelled before a permit was
// granted); running may only end. Terminal states are sinks.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateRunning || next.IsTerminal()
	case StateRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}
