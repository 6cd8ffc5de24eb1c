// In file: internal/dispatch/state.go

// Package dispatch drives one request through tool selection, provider routing, confirmation,
// argument validation and execution.
package dispatch

// State is a position in the dispatch cycle.
type State string

const (
	StateIdle       State = "Idle"
	StateSelecting  State = "Selecting"
	StateRouted     State = "Routed"
	StateConfirming State = "Confirming"
	StateValidating State = "Validating"
	StateExecuting  State = "Executing"
	StateDone       State = "Done"
	StateError      State = "Error"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// transitions lists the legal forward edges. Error is reachable from every non-terminal state.
var transitions = map[State][]State{
	StateIdle:       {StateSelecting},
	StateSelecting:  {StateRouted, StateDone},
	StateRouted:     {StateConfirming, StateValidating},
	StateConfirming: {StateValidating},
	StateValidating: {StateExecuting},
	StateExecuting:  {StateDone},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
