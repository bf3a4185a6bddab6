// Package statemachine provides a generic, stateless finite state machine.
//
// A Table maps (state, event) pairs to transitions with optional guards and
// actions. Because it holds no current state, a single Table can drive many
// persisted records: load the record, call Fire with its state, store the
// returned state. States marked Terminal reject every event.
package statemachine
