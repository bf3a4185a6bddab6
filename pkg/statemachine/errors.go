package statemachine

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid transition: at least one source state is required")

// ErrNoTransitionAvailable indicates no transition exists for the state/event pair.
type ErrNoTransitionAvailable struct {
	State string
	Event string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.State, e.Event)
}

func NewErrNoTransitionAvailable(state, event any) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{State: fmt.Sprint(state), Event: fmt.Sprint(event)}
}

// ErrTransitionRejected indicates every candidate transition was blocked by a guard.
type ErrTransitionRejected struct {
	State string
	Event string
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition from state '%s' for event '%s' was rejected by guards", e.State, e.Event)
}

func NewErrTransitionRejected(state, event any) *ErrTransitionRejected {
	return &ErrTransitionRejected{State: fmt.Sprint(state), Event: fmt.Sprint(event)}
}

// ErrTerminalState indicates an event was fired at a terminal state.
type ErrTerminalState struct {
	State string
	Event string
}

func (e *ErrTerminalState) Error() string {
	return fmt.Sprintf("state '%s' is terminal, event '%s' not allowed", e.State, e.Event)
}

func NewErrTerminalState(state, event any) *ErrTerminalState {
	return &ErrTerminalState{State: fmt.Sprint(state), Event: fmt.Sprint(event)}
}

// IsTransitionError reports whether err is any of the table's refusal errors.
func IsTransitionError(err error) bool {
	var (
		na *ErrNoTransitionAvailable
		rj *ErrTransitionRejected
		ts *ErrTerminalState
	)
	return errors.As(err, &na) || errors.As(err, &rj) || errors.As(err, &ts)
}
