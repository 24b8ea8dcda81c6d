package session

import "slices"

// State is the lifecycle position of an upload session.
type State string

// Session states.
const (
	StateUploading State = "uploading"
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateError     State = "error"
)

var transitions = map[State][]State{
	StateUploading: {StatePending, StateError},
	StatePending:   {StateConfirmed, StateCancelled, StateError},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// IsActive reports whether the session is still being processed or awaiting the user.
func (s State) IsActive() bool {
	return s == StateUploading || s == StatePending
}

// IsCompleted reports whether the user finished the session.
func (s State) IsCompleted() bool {
	return s == StateConfirmed || s == StateCancelled
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}
