package statemachine

import (
	"context"
	"fmt"
	"slices"
)

// Guard evaluates whether a transition may proceed for the given payload.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Action runs a side effect before the state changes. Returning an error aborts the transition.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event.
type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // executed in order before the change is reported
}

// Table is an immutable transition table. It holds no current state:
// callers pass the state they loaded and persist the state Fire returns,
// so one Table serves any number of records concurrently.
type Table[S, E comparable] struct {
	transitions map[S]map[E][]Transition[S, E]
	terminal    []S
}

// Fire resolves the transition for (current, event). The first registered
// transition whose guards all pass wins.
func (t *Table[S, E]) Fire(ctx context.Context, current S, event E, data any) (S, error) {
	if slices.Contains(t.terminal, current) {
		return current, NewErrTerminalState(current, event)
	}

	candidates := t.transitions[current][event]
	if len(candidates) == 0 {
		return current, NewErrNoTransitionAvailable(current, event)
	}

	tr := t.pick(ctx, candidates, current, event, data)
	if tr == nil {
		return current, NewErrTransitionRejected(current, event)
	}

	for _, action := range tr.Actions {
		if err := action(ctx, current, tr.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}

	return tr.To, nil
}

// CanFire reports whether Fire would succeed, without running actions.
func (t *Table[S, E]) CanFire(ctx context.Context, current S, event E, data any) bool {
	if slices.Contains(t.terminal, current) {
		return false
	}
	return t.pick(ctx, t.transitions[current][event], current, event, data) != nil
}

// IsTerminal reports whether no transition may leave s.
func (t *Table[S, E]) IsTerminal(s S) bool {
	return slices.Contains(t.terminal, s)
}

// Events lists the events accepted from s, in no particular order.
func (t *Table[S, E]) Events(s S) []E {
	var out []E
	for e := range t.transitions[s] {
		out = append(out, e)
	}
	return out
}

func (t *Table[S, E]) pick(ctx context.Context, candidates []Transition[S, E], current S, event E, data any) *Transition[S, E] {
	for i := range candidates {
		passed := true
		for _, guard := range candidates[i].Guards {
			if !guard(ctx, current, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return &candidates[i]
		}
	}
	return nil
}
