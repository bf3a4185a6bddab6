package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
)

// Handler reacts to one event type.
type Handler func(ctx context.Context, e Event) error

// Dispatcher routes events to handlers by event type. The table is built
// at startup with Handle and read on every Dispatch.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger for the Dispatcher.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher with no handlers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers h for eventType. Each type has exactly one handler.
func (d *Dispatcher) Handle(eventType string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handlers[eventType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, eventType)
	}
	d.handlers[eventType] = h
	return nil
}

// Types returns the registered event types, sorted.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Dispatch validates e and runs its handler. Unknown types return a
// ValidationError wrapping ErrUnhandledEvent.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	h, ok := d.handlers[e.Type]
	d.mu.RUnlock()
	if !ok {
		return apperr.Validationf(ErrUnhandledEvent, "type", "no handler for %q", e.Type)
	}

	ctx = WithCorrelationID(ctx, e.CorrelationID)
	if err := h(ctx, e); err != nil {
		return err
	}

	d.logger.LogAttrs(ctx, slog.LevelDebug, "event dispatched",
		logger.Component("events"),
		logger.EventType(e.Type),
		logger.UserID(e.UserID),
	)
	return nil
}
