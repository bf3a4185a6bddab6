package statemachine

// Builder assembles a Table with a fluent API:
//
//	table, err := statemachine.NewBuilder[Status, Event]().
//	    From(Pending, Scheduled).On(Claim).To(Sending).
//	    From(Sending).On(Delivered).To(Sent).
//	    Terminal(Sent, Failed).
//	    Build()
type Builder[S, E comparable] struct {
	table   *Table[S, E]
	pending []Transition[S, E]
	err     error
}

// NewBuilder starts an empty transition table.
func NewBuilder[S, E comparable]() *Builder[S, E] {
	return &Builder[S, E]{
		table: &Table[S, E]{transitions: make(map[S]map[E][]Transition[S, E])},
	}
}

// TransitionBuilder configures the transitions started by From.
type TransitionBuilder[S, E comparable] struct {
	parent *Builder[S, E]
	from   []S
	event  E
	guards []Guard[S, E]
	acts   []Action[S, E]
}

// From starts a transition leaving any of the given states.
func (b *Builder[S, E]) From(states ...S) *TransitionBuilder[S, E] {
	if len(states) == 0 && b.err == nil {
		b.err = ErrInvalidTransition
	}
	return &TransitionBuilder[S, E]{parent: b, from: states}
}

// On sets the event that triggers the transition.
func (tb *TransitionBuilder[S, E]) On(event E) *TransitionBuilder[S, E] {
	tb.event = event
	return tb
}

// Guard adds a precondition checked before the transition fires.
func (tb *TransitionBuilder[S, E]) Guard(g Guard[S, E]) *TransitionBuilder[S, E] {
	if g != nil {
		tb.guards = append(tb.guards, g)
	}
	return tb
}

// Action adds a callback run after the guards pass.
func (tb *TransitionBuilder[S, E]) Action(a Action[S, E]) *TransitionBuilder[S, E] {
	if a != nil {
		tb.acts = append(tb.acts, a)
	}
	return tb
}

// To completes the transition and returns the parent builder.
func (tb *TransitionBuilder[S, E]) To(to S) *Builder[S, E] {
	for _, from := range tb.from {
		tb.parent.pending = append(tb.parent.pending, Transition[S, E]{
			From:    from,
			To:      to,
			Event:   tb.event,
			Guards:  tb.guards,
			Actions: tb.acts,
		})
	}
	return tb.parent
}

// Terminal marks states that no transition may leave.
func (b *Builder[S, E]) Terminal(states ...S) *Builder[S, E] {
	b.table.terminal = append(b.table.terminal, states...)
	return b
}

// Build validates the definition and returns the table.
// A transition declared out of a terminal state is a definition error.
func (b *Builder[S, E]) Build() (*Table[S, E], error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, tr := range b.pending {
		if b.table.IsTerminal(tr.From) {
			return nil, NewErrTerminalState(tr.From, tr.Event)
		}
		byEvent, ok := b.table.transitions[tr.From]
		if !ok {
			byEvent = make(map[E][]Transition[S, E])
			b.table.transitions[tr.From] = byEvent
		}
		byEvent[tr.Event] = append(byEvent[tr.Event], tr)
	}
	return b.table, nil
}

// MustBuild is like Build but panics on a definition error.
func (b *Builder[S, E]) MustBuild() *Table[S, E] {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
