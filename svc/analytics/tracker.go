package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/libraryops/pkg/logger"
)

// Tracker records analytics events and computes metrics from them.
type Tracker struct {
	store     Store
	collector *Collector
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Tracker)

// WithLogger sets the logger for the Tracker.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithCollector mirrors every recorded event into Prometheus counters.
func WithCollector(c *Collector) Option {
	return func(t *Tracker) { t.collector = c }
}

// NewTracker creates a Tracker that appends events to store.
func NewTracker(store Store, opts ...Option) *Tracker {
	if store == nil {
		panic("analytics: store cannot be nil")
	}
	t := &Tracker{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track appends an event. The "channel" and "category" metadata keys, when
// strings, populate the indexed Event fields used by metric filters.
func (t *Tracker) Track(ctx context.Context, notificationID, userID string, typ EventType, metadata map[string]any) error {
	e := Event{
		NotificationID: notificationID,
		UserID:         userID,
		Type:           typ,
		Metadata:       metadata,
	}
	if ch, ok := metadata["channel"].(string); ok {
		e.Channel = ch
	}
	if cat, ok := metadata["category"].(string); ok {
		e.Category = cat
	}
	return t.Record(ctx, e)
}

// Record appends e, filling ID and OccurredAt when empty.
func (t *Tracker) Record(ctx context.Context, e Event) error {
	if e.Type == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = t.now()
	}

	if err := t.store.Append(ctx, e); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record analytics event",
			logger.Component("analytics"),
			logger.NotificationID(e.NotificationID),
			logger.EventType(string(e.Type)),
			logger.Error(err),
		)
		return err
	}
	if t.collector != nil {
		t.collector.ObserveEvent(e)
	}
	return nil
}

// ComputeMetrics counts events matching q and derives rates.
func (t *Tracker) ComputeMetrics(ctx context.Context, q Query) (Metrics, error) {
	counts, err := t.store.Count(ctx, q)
	if err != nil {
		return Metrics{}, err
	}
	return ComputeMetrics(counts), nil
}
