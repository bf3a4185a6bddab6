package dispatch

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for the Scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for due checks and backoff.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInterval sets the tick period. Default is 60s.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatchSize caps how many due notifications one tick claims. Default is 100.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConcurrency bounds in-flight deliveries per tick. Default is 10.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithBackoff replaces the retry delay table.
func WithBackoff(b Backoff) Option {
	return func(s *Scheduler) {
		if len(b) > 0 {
			s.backoff = b
		}
	}
}

// WithPreferences sets the source of per-user delivery preferences.
func WithPreferences(src notification.PreferenceSource) Option {
	return func(s *Scheduler) { s.prefs = src }
}

// WithTracker sets the analytics tracker for delivery events.
func WithTracker(t notification.EventTracker) Option {
	return func(s *Scheduler) { s.tracker = t }
}

// WithCollector sets the Prometheus collector for tick and delivery metrics.
func WithCollector(c *analytics.Collector) Option {
	return func(s *Scheduler) { s.collector = c }
}
