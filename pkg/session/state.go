// Package session drives one test invocation from change detection through
// execution to a verdict.
package session

import (
	"errors"
	"fmt"
)

// State is a stage of a session.
type State int

// Session states. The flow is linear and no state is entered twice.
const (
	Idle State = iota
	Resolving
	Skipped
	Executing
	Evaluating
	Passed
	Failed
	// Errored ends a session that could not produce a verdict.
	Errored
)

var stateNames = map[State]string{
	Idle:       "idle",
	Resolving:  "resolving",
	Skipped:    "skipped",
	Executing:  "executing",
	Evaluating: "evaluating",
	Passed:     "passed",
	Failed:     "failed",
	Errored:    "errored",
}

// ErrInvalidTransition is returned for a transition the session flow does not allow.
var ErrInvalidTransition = errors.New("invalid session transition")

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return name
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case Skipped, Passed, Failed, Errored:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a step of the session flow.
func CanTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Resolving
	case Resolving:
		return to == Skipped || to == Executing || to == Errored
	case Executing:
		return to == Evaluating || to == Errored
	case Evaluating:
		return to == Passed || to == Failed || to == Errored
	default:
		return false
	}
}
