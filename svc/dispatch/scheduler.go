package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/libraryops/pkg/async"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/channel"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/preference"
)

// Deliverer sends a payload over its channel. *channel.Registry implements it.
type Deliverer interface {
	Deliver(ctx context.Context, p channel.Payload) (string, error)
}

// Outcome is what one tick did with one notification.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeRetried Outcome = "retried"
	OutcomeFailed  Outcome = "failed"
	OutcomeExpired Outcome = "expired"
	// OutcomeSkipped means another worker or a user action changed the row
	// after it was queried.
	OutcomeSkipped Outcome = "skipped"
)

// TickResult summarizes one tick.
type TickResult struct {
	Due      int
	Outcomes map[Outcome]int
	Errors   int
	// Skipped is true when the tick did not run because the previous one
	// was still in progress.
	Skipped bool
}

// Scheduler periodically claims due notifications, delivers them and
// applies the retry policy. At most one tick runs at a time.
type Scheduler struct {
	store     notification.Store
	deliverer Deliverer
	users     notification.UserDirectory
	prefs     notification.PreferenceSource
	tracker   notification.EventTracker
	collector *analytics.Collector
	logger    *slog.Logger
	now       func() time.Time

	interval    time.Duration
	batchSize   int
	concurrency int
	backoff     Backoff

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler over store. The deliverer and users are required.
func New(store notification.Store, deliverer Deliverer, users notification.UserDirectory, opts ...Option) (*Scheduler, error) {
	switch {
	case store == nil:
		return nil, ErrStoreNil
	case deliverer == nil:
		return nil, ErrDelivererNil
	case users == nil:
		return nil, ErrDirectoryNil
	}

	s := &Scheduler{
		store:       store,
		deliverer:   deliverer,
		users:       users,
		logger:      slog.Default(),
		now:         time.Now,
		interval:    60 * time.Second,
		batchSize:   100,
		concurrency: 10,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs a tick immediately and then every interval until Stop is
// called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduler started",
		logger.Component("scheduler"),
		logger.Duration(s.interval),
	)
	return nil
}

// Stop cancels the loop and waits for the running tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "scheduler stopped",
		logger.Component("scheduler"),
	)
	return nil
}

// Run adapts the scheduler to errgroup: it starts, blocks until ctx is
// done and then stops.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "scheduler tick failed",
				logger.Component("scheduler"),
				logger.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick processes one batch of due notifications. If a tick is already in
// progress it returns immediately with Skipped set.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		if s.collector != nil {
			s.collector.TickSkipped()
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "tick skipped, previous tick still running",
			logger.Component("scheduler"),
		)
		return TickResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	due, err := s.store.QueryDue(ctx, s.now(), s.batchSize)
	if err != nil {
		return TickResult{}, err
	}

	result := TickResult{Due: len(due), Outcomes: make(map[Outcome]int)}
	for _, r := range async.AllSettled(ctx, due, s.concurrency, s.process) {
		if r.Err != nil {
			result.Errors++
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to process notification",
				logger.Component("scheduler"),
				logger.NotificationID(r.Input.ID),
				logger.Error(r.Err),
			)
			continue
		}
		result.Outcomes[r.Value]++
	}

	if s.collector != nil {
		s.collector.ObserveTick(len(due), time.Since(start))
	}
	if len(due) > 0 {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduler tick completed",
			logger.Component("scheduler"),
			logger.Count("due", len(due)),
			logger.Count("sent", result.Outcomes[OutcomeSent]),
			logger.Count("retried", result.Outcomes[OutcomeRetried]),
			logger.Count("failed", result.Outcomes[OutcomeFailed]),
			logger.Duration(time.Since(start)),
		)
	}
	return result, nil
}

func (s *Scheduler) process(ctx context.Context, n notification.Notification) (Outcome, error) {
	now := s.now()

	if n.IsExpired(now) {
		return s.settle(ctx, n, notification.EventExpire, OutcomeExpired, func(*notification.Notification) {})
	}

	prefs, err := s.preferences(ctx, n.UserID)
	if err != nil {
		return "", err
	}

	expected := n.Status
	if err := notification.Transition(ctx, &n, notification.EventClaim); err != nil {
		return "", err
	}
	n.UpdatedAt = now
	if err := s.store.Update(ctx, n, expected); err != nil {
		if errors.Is(err, notification.ErrStaleStatus) {
			return OutcomeSkipped, nil
		}
		return "", err
	}

	if n.RetryCount == 0 {
		s.track(ctx, n, analytics.EventSent)
	}
	start := time.Now()
	err = s.deliver(ctx, n, prefs, now)
	if s.collector != nil {
		s.collector.ObserveDelivery(string(n.Channel), time.Since(start), err)
	}

	// The row is SENDING now; its outcome must be saved even if Stop
	// cancelled ctx during delivery.
	ctx = context.WithoutCancel(ctx)
	if err == nil {
		return s.delivered(ctx, n)
	}
	return s.failed(ctx, n, err)
}

// deliver resolves the recipient and hands the payload to the channel.
// A panicking adapter counts as a transient failure.
func (s *Scheduler) deliver(ctx context.Context, n notification.Notification, prefs *preference.Preferences, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = channel.Transient(n.Channel, fmt.Errorf("%w: %v", async.ErrPanic, r))
		}
	}()

	recipient, err := s.users.Lookup(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, notification.ErrUserNotFound) {
			return channel.Permanent(n.Channel, err)
		}
		return channel.Transient(n.Channel, err)
	}
	payload, err := channel.BuildPayload(n, recipient, prefs, now)
	if err != nil {
		return err
	}
	_, err = s.deliverer.Deliver(ctx, payload)
	return err
}

func (s *Scheduler) delivered(ctx context.Context, n notification.Notification) (Outcome, error) {
	now := s.now()
	outcome, err := s.settle(ctx, n, notification.EventDeliver, OutcomeSent, func(n *notification.Notification) {
		n.SentAt = &now
		n.ErrorMessage = ""
	})
	if err != nil || outcome == OutcomeSkipped {
		return outcome, err
	}
	s.track(ctx, n, analytics.EventDelivered)
	return outcome, nil
}

// failed counts the attempt and either reschedules with backoff or marks
// the notification FAILED. Permanent errors skip the remaining retries.
func (s *Scheduler) failed(ctx context.Context, n notification.Notification, cause error) (Outcome, error) {
	now := s.now()
	if n.RetryCount < n.MaxRetries {
		n.RetryCount++
	}
	n.ErrorMessage = cause.Error()

	if !channel.IsPermanent(cause) && n.RetriesLeft() {
		next := now.Add(s.backoff.Delay(n.RetryCount))
		outcome, err := s.settle(ctx, n, notification.EventRetry, OutcomeRetried, func(n *notification.Notification) {
			n.ScheduledFor = &next
		})
		if err != nil || outcome == OutcomeSkipped {
			return outcome, err
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "delivery failed, retry scheduled",
			logger.Component("scheduler"),
			logger.NotificationID(n.ID),
			logger.Channel(n.Channel),
			logger.RetryCount(n.RetryCount),
			logger.ScheduledFor(next),
			logger.Error(cause),
		)
		s.track(ctx, n, analytics.EventRetried)
		return outcome, nil
	}

	outcome, err := s.settle(ctx, n, notification.EventFail, OutcomeFailed, func(*notification.Notification) {})
	if err != nil || outcome == OutcomeSkipped {
		return outcome, err
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "notification delivery failed permanently",
		logger.Component("scheduler"),
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
		logger.Channel(n.Channel),
		logger.RetryCount(n.RetryCount),
		logger.Error(cause),
	)
	s.track(ctx, n, analytics.EventFailed)
	return outcome, nil
}

// settle fires ev, applies mutate and saves the row against its previous
// status. A concurrent change yields OutcomeSkipped.
func (s *Scheduler) settle(ctx context.Context, n notification.Notification, ev notification.Event, outcome Outcome, mutate func(*notification.Notification)) (Outcome, error) {
	expected := n.Status
	if err := notification.Transition(ctx, &n, ev); err != nil {
		return "", err
	}
	mutate(&n)
	n.UpdatedAt = s.now()

	if err := s.store.Update(ctx, n, expected); err != nil {
		if errors.Is(err, notification.ErrStaleStatus) {
			return OutcomeSkipped, nil
		}
		return "", err
	}
	return outcome, nil
}

func (s *Scheduler) preferences(ctx context.Context, userID string) (*preference.Preferences, error) {
	if s.prefs == nil {
		return nil, nil
	}
	return s.prefs.Get(ctx, userID)
}

func (s *Scheduler) track(ctx context.Context, n notification.Notification, typ analytics.EventType) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Track(ctx, n.ID, n.UserID, typ, n.AnalyticsMetadata()); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to track event",
			logger.NotificationID(n.ID),
			logger.EventType(string(typ)),
			logger.Error(err),
		)
	}
}
