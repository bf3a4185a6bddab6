package events

import "errors"

var (
	ErrInvalidEvent     = errors.New("events: invalid event")
	ErrUnhandledEvent   = errors.New("events: no handler for event type")
	ErrDuplicateHandler = errors.New("events: handler already registered")
	ErrInvalidMappings  = errors.New("events: invalid mapping file")
	ErrNotConnected     = errors.New("events: consumer is not connected")
	ErrDeliveriesClosed = errors.New("events: delivery channel closed by broker")
)
