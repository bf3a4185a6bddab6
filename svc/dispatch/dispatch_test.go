package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/channel"
	"github.com/dmitrymomot/libraryops/svc/dispatch"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type deliverFunc func(ctx context.Context, p channel.Payload) (string, error)

func (f deliverFunc) Deliver(ctx context.Context, p channel.Payload) (string, error) { return f(ctx, p) }

func alwaysOK(context.Context, channel.Payload) (string, error) { return "ok", nil }

type env struct {
	store  *notification.MemoryStore
	events *analytics.MemoryStore
	clock  *clock
	sched  *dispatch.Scheduler
}

func newEnv(t *testing.T, d dispatch.Deliverer, opts ...dispatch.Option) env {
	t.Helper()
	return newEnvWithStore(t, notification.NewMemoryStore(), d, opts...)
}

func newEnvWithStore(t *testing.T, store notification.Store, d dispatch.Deliverer, opts ...dispatch.Option) env {
	t.Helper()
	c := &clock{now: t0}
	events := analytics.NewMemoryStore()
	users := notification.NewMemoryDirectory(notification.Recipient{UserID: "u1", Email: "u1@example.com"})

	opts = append([]dispatch.Option{
		dispatch.WithClock(c.Now),
		dispatch.WithTracker(analytics.NewTracker(events, analytics.WithClock(c.Now))),
	}, opts...)
	s, err := dispatch.New(store, d, users, opts...)
	require.NoError(t, err)

	ms, _ := store.(*notification.MemoryStore)
	return env{store: ms, events: events, clock: c, sched: s}
}

func seed(t *testing.T, s notification.Store, id, user string, at time.Time) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), notification.Notification{
		ID:           id,
		UserID:       user,
		Title:        "Overdue",
		Message:      "Please return your book",
		Channel:      notification.ChannelEmail,
		Priority:     notification.PriorityMedium,
		Status:       notification.StatusPending,
		ScheduledFor: &at,
		MaxRetries:   notification.DefaultMaxRetries,
		CreatedAt:    at,
	}))
}

func countEvents(events []analytics.Event) map[analytics.EventType]int {
	out := make(map[analytics.EventType]int)
	for _, e := range events {
		out[e.Type]++
	}
	return out
}

func TestScheduler_Delivers(t *testing.T) {
	t.Parallel()

	var got channel.Payload
	e := newEnv(t, deliverFunc(func(_ context.Context, p channel.Payload) (string, error) {
		got = p
		return "msg-1", nil
	}))
	seed(t, e.store, "n1", "u1", t0)

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
	assert.Equal(t, 1, res.Outcomes[dispatch.OutcomeSent])

	n, err := e.store.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, n.Status)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, t0, *n.SentAt)
	assert.Equal(t, "u1@example.com", got.(channel.EmailPayload).To)

	counts := countEvents(e.events.Events("n1"))
	assert.Equal(t, 1, counts[analytics.EventSent])
	assert.Equal(t, 1, counts[analytics.EventDelivered])
}

func TestScheduler_RetryBackoffThenFailed(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		return "", channel.Transient(notification.ChannelEmail, errors.New("smtp timeout"))
	}))
	seed(t, e.store, "n1", "u1", t0)
	ctx := context.Background()

	_, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	n, _ := e.store.Get(ctx, "n1")
	assert.Equal(t, notification.StatusScheduled, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Equal(t, t0.Add(time.Minute), *n.ScheduledFor)
	assert.Contains(t, n.ErrorMessage, "smtp timeout")

	e.clock.Set(t0.Add(30 * time.Second))
	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Due)

	e.clock.Set(t0.Add(time.Minute))
	_, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	n, _ = e.store.Get(ctx, "n1")
	assert.Equal(t, notification.StatusScheduled, n.Status)
	assert.Equal(t, 2, n.RetryCount)
	assert.Equal(t, t0.Add(6*time.Minute), *n.ScheduledFor)

	e.clock.Set(t0.Add(6 * time.Minute))
	res, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcomes[dispatch.OutcomeFailed])
	n, _ = e.store.Get(ctx, "n1")
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Equal(t, n.MaxRetries, n.RetryCount)

	e.clock.Set(t0.Add(time.Hour))
	res, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Due, "terminal rows are never picked up again")

	counts := countEvents(e.events.Events("n1"))
	assert.Equal(t, 1, counts[analytics.EventSent], "sent is counted once per notification")
	assert.Equal(t, 2, counts[analytics.EventRetried])
	assert.Equal(t, 1, counts[analytics.EventFailed])
	assert.Zero(t, counts[analytics.EventDelivered])
}

func TestScheduler_PermanentFailureSkipsRetries(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		return "", channel.Permanent(notification.ChannelEmail, errors.New("mailbox does not exist"))
	}))
	seed(t, e.store, "n1", "u1", t0)
	seed(t, e.store, "n2", "ghost", t0)

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Outcomes[dispatch.OutcomeFailed])

	for _, id := range []string{"n1", "n2"} {
		n, err := e.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusFailed, n.Status, id)
		assert.Equal(t, 1, n.RetryCount, id)
	}
	n2, _ := e.store.Get(context.Background(), "n2")
	assert.Contains(t, n2.ErrorMessage, notification.ErrUserNotFound.Error())
}

func TestScheduler_PanickingAdapterIsRetried(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		panic("nil client")
	}))
	seed(t, e.store, "n1", "u1", t0)
	ctx := context.Background()

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Errors)
	assert.Equal(t, 1, res.Outcomes[dispatch.OutcomeRetried])

	n, err := e.store.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Equal(t, t0.Add(time.Minute), *n.ScheduledFor)
	assert.Contains(t, n.ErrorMessage, "nil client")

	e.clock.Set(t0.Add(time.Minute))
	res, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due, "the row is picked up again")
}

func TestScheduler_RetryCountNeverExceedsMax(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		return "", errors.New("boom")
	}))
	at := t0
	require.NoError(t, e.store.Create(context.Background(), notification.Notification{
		ID: "n0", UserID: "u1", Title: "t", Message: "m", Channel: notification.ChannelEmail,
		Status: notification.StatusPending, ScheduledFor: &at, MaxRetries: 0,
	}))

	_, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	n, _ := e.store.Get(context.Background(), "n0")
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Zero(t, n.RetryCount)
}

func TestScheduler_ExpiredDueRow(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(alwaysOK))
	at := t0.Add(-time.Hour)
	exp := t0.Add(-time.Minute)
	require.NoError(t, e.store.Create(context.Background(), notification.Notification{
		ID: "n1", UserID: "u1", Title: "t", Message: "m", Channel: notification.ChannelEmail,
		Status: notification.StatusScheduled, ScheduledFor: &at, ExpiresAt: &exp, MaxRetries: 3,
	}))

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcomes[dispatch.OutcomeExpired])

	n, _ := e.store.Get(context.Background(), "n1")
	assert.Equal(t, notification.StatusExpired, n.Status)
}

func TestScheduler_BatchSizeAndOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var sent []string
	e := newEnv(t, deliverFunc(func(_ context.Context, p channel.Payload) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, p.(channel.EmailPayload).Metadata["notification_id"])
		return "ok", nil
	}), dispatch.WithBatchSize(3), dispatch.WithConcurrency(1))

	for i := range 5 {
		seed(t, e.store, fmt.Sprintf("n%d", i), "u1", t0.Add(-time.Duration(i)*time.Minute))
	}

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Due)
	assert.Equal(t, []string{"n4", "n3", "n2"}, sent)
}

func TestScheduler_SkipsOverlappingTick(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	e := newEnv(t, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		close(entered)
		<-release
		return "ok", nil
	}))
	seed(t, e.store, "n1", "u1", t0)

	done := make(chan dispatch.TickResult)
	go func() {
		res, _ := e.sched.Tick(context.Background())
		done <- res
	}()
	<-entered

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	close(release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Outcomes[dispatch.OutcomeSent])
}

// claimRace cancels every due row right after it is queried, the way a
// user cancelling at the same moment would.
type claimRace struct {
	*notification.MemoryStore
}

func (s *claimRace) QueryDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	rows, err := s.MemoryStore.QueryDue(ctx, now, limit)
	for _, n := range rows {
		c := n
		c.Status = notification.StatusCancelled
		_ = s.MemoryStore.Update(ctx, c, n.Status)
	}
	return rows, err
}

func TestScheduler_ConcurrentCancelIsNotResurrected(t *testing.T) {
	t.Parallel()

	calls := 0
	store := &claimRace{MemoryStore: notification.NewMemoryStore()}
	e := newEnvWithStore(t, store, deliverFunc(func(context.Context, channel.Payload) (string, error) {
		calls++
		return "ok", nil
	}))
	seed(t, store, "n1", "u1", t0)

	res, err := e.sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcomes[dispatch.OutcomeSkipped])
	assert.Zero(t, calls)

	n, _ := store.Get(context.Background(), "n1")
	assert.Equal(t, notification.StatusCancelled, n.Status)
}

// cancelAwareStore fails writes on a cancelled context, as a database
// driver does.
type cancelAwareStore struct {
	*notification.MemoryStore
}

func (s *cancelAwareStore) Update(ctx context.Context, n notification.Notification, expected notification.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Update(ctx, n, expected)
}

func TestScheduler_StopSavesInFlightDelivery(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	store := &cancelAwareStore{MemoryStore: notification.NewMemoryStore()}
	e := newEnvWithStore(t, store, deliverFunc(func(ctx context.Context, _ channel.Payload) (string, error) {
		close(started)
		<-ctx.Done()
		return "msg-1", nil
	}), dispatch.WithInterval(time.Hour))
	seed(t, store, "n1", "u1", t0)

	require.NoError(t, e.sched.Start(context.Background()))
	<-started
	require.NoError(t, e.sched.Stop())

	n, err := store.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, n.Status)
	assert.NotNil(t, n.SentAt)
	assert.Equal(t, 1, countEvents(e.events.Events("n1"))[analytics.EventDelivered])
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	e := newEnv(t, deliverFunc(alwaysOK), dispatch.WithInterval(time.Hour))
	seed(t, e.store, "n1", "u1", t0)

	assert.ErrorIs(t, e.sched.Stop(), dispatch.ErrNotStarted)
	require.NoError(t, e.sched.Start(context.Background()))
	assert.ErrorIs(t, e.sched.Start(context.Background()), dispatch.ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		n, err := e.store.Get(context.Background(), "n1")
		return err == nil && n.Status == notification.StatusSent
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.sched.Stop())
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	users := notification.NewMemoryDirectory()
	_, err := dispatch.New(nil, deliverFunc(alwaysOK), users)
	assert.ErrorIs(t, err, dispatch.ErrStoreNil)
	_, err = dispatch.New(notification.NewMemoryStore(), nil, users)
	assert.ErrorIs(t, err, dispatch.ErrDelivererNil)
	_, err = dispatch.New(notification.NewMemoryStore(), deliverFunc(alwaysOK), nil)
	assert.ErrorIs(t, err, dispatch.ErrDirectoryNil)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, 30 * time.Minute},
		{5, time.Hour},
		{12, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dispatch.DefaultBackoff.Delay(tt.retry), "retry %d", tt.retry)
	}
	assert.Zero(t, dispatch.Backoff{}.Delay(1))
}
