package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Logger records audit events to a Storage.
type Logger struct {
	storage        Storage
	actorExtractor func(context.Context) (string, bool)
	now            func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithActorExtractor fills Event.Actor from the request context.
func WithActorExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.actorExtractor = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger. It panics when storage is nil.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, l.newEvent(ctx, action, ResultSuccess), opts)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	e := l.newEvent(ctx, action, ResultError)
	if err != nil {
		e.Error = err.Error()
	}
	return l.store(ctx, e, opts)
}

func (l *Logger) newEvent(ctx context.Context, action string, result Result) Event {
	e := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now(),
	}
	if l.actorExtractor != nil {
		if actor, ok := l.actorExtractor(ctx); ok {
			e.Actor = actor
		}
	}
	return e
}

func (l *Logger) store(ctx context.Context, e Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, e)
}
