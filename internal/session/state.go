package session

import "slices"

// State is the lifecycle stage of a dictation session.
type State string

const (
	Idle         State = "idle"
	Capturing    State = "capturing"
	Transcribing State = "transcribing"
	Formatting   State = "formatting"
	Delivering   State = "delivering"
)

// transitions lists the legal next states. Every non-idle state may fall back
// to Idle on abort, error or shutdown.
var transitions = map[State][]State{
	Idle:         {Capturing},
	Capturing:    {Transcribing, Idle},
	Transcribing: {Formatting, Idle},
	Formatting:   {Delivering, Idle},
	Delivering:   {Idle},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
