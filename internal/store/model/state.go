package model

// State is the lifecycle state of a batch search.
type State string

const (
	StateQueued  State = "QUEUED"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Terminal reports whether no further transition is allowed out of s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// CanTransition reports whether moving from s to next is a forward
// transition. Re-setting the current state is allowed (idempotent
// no-op); moving backward or out of a terminal state is not.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	switch s {
	case StateQueued:
		return next == StateRunning || next == StateFailure
	case StateRunning:
		return next.Terminal()
	default:
		return false
	}
}
