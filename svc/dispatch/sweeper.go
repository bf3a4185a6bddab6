package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Sweeper marks non-terminal notifications past their ExpiresAt as EXPIRED.
type Sweeper struct {
	store     notification.Store
	schedule  Schedule
	batchSize int
	collector *analytics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

type SweeperOption func(*Sweeper)

// WithSweeperLogger sets the logger for the Sweeper.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweeperClock sets the clock used for expiry checks.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepBatchSize sets the page size of the expirable query. Default is 100.
func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSweeperCollector sets the collector that counts expired rows.
func WithSweeperCollector(c *analytics.Collector) SweeperOption {
	return func(s *Sweeper) { s.collector = c }
}

// NewSweeper creates a Sweeper that runs on schedule.
func NewSweeper(store notification.Store, schedule Schedule, opts ...SweeperOption) (*Sweeper, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if schedule == nil {
		return nil, ErrNoScheduleDefined
	}
	s := &Sweeper{
		store:     store,
		schedule:  schedule,
		batchSize: 100,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep expires rows page by page until none are left and returns how many
// it expired. Rows changed concurrently are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		now := s.now()
		rows, err := s.store.QueryExpirable(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}

		expired := 0
		for _, n := range rows {
			expected := n.Status
			if err := notification.Transition(ctx, &n, notification.EventExpire); err != nil {
				continue
			}
			n.UpdatedAt = now
			err := s.store.Update(ctx, n, expected)
			switch {
			case errors.Is(err, notification.ErrStaleStatus):
				continue
			case err != nil:
				return total, err
			}
			expired++
		}
		total += expired

		if len(rows) < s.batchSize || expired == 0 {
			break
		}
	}

	if s.collector != nil {
		s.collector.Expired(total)
	}
	if total > 0 {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "expired notifications",
			logger.Component("sweeper"),
			logger.Count("expired", total),
		)
	}
	return total, nil
}

// Run sweeps on every schedule occurrence until ctx is done. It fits errgroup.Go.
func (s *Sweeper) Run(ctx context.Context) func() error {
	return func() error {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "sweeper started",
			logger.Component("sweeper"),
			slog.String("schedule", s.schedule.String()),
		)
		for {
			wait := s.schedule.Next(s.now()).Sub(s.now())
			timer := time.NewTimer(max(wait, 0))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.LogAttrs(ctx, slog.LevelError, "expiry sweep failed",
					logger.Component("sweeper"),
					logger.Error(err),
				)
			}
		}
	}
}
