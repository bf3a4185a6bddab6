package bulk_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/async"
	"github.com/dmitrymomot/libraryops/pkg/audit"
	"github.com/dmitrymomot/libraryops/svc/bulk"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/template"
)

var now = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func userIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%d", i+1)
	}
	return ids
}

func content() bulk.Content {
	return bulk.Content{
		Title:    "Library closed Monday",
		Message:  "All branches are closed for the holiday",
		Category: "announcements",
		Channel:  notification.ChannelEmail,
	}
}

type setup struct {
	orch   *bulk.Orchestrator
	store  *notification.MemoryStore
	audits *audit.MemoryStorage
}

func newSetup(t *testing.T, users []string, opts ...bulk.Option) setup {
	t.Helper()

	clock := func() time.Time { return now }
	dir := notification.NewMemoryDirectory()
	for _, id := range users {
		dir.Put(notification.Recipient{UserID: id, Email: id + "@example.com"})
	}
	store := notification.NewMemoryStore()
	manager := notification.NewManager(store, dir, notification.WithClock(clock))
	audits := audit.NewMemoryStorage()

	opts = append([]bulk.Option{
		bulk.WithClock(clock),
		bulk.WithChunkPause(0),
		bulk.WithAuditor(audit.NewLogger(audits)),
	}, opts...)
	orch, err := bulk.NewOrchestrator(manager, opts...)
	require.NoError(t, err)
	return setup{orch: orch, store: store, audits: audits}
}

func TestSendBulk_PartialFailure(t *testing.T) {
	t.Parallel()

	ids := userIDs(250)
	known := make([]string, 0, 249)
	for _, id := range ids {
		if id != "user-137" {
			known = append(known, id)
		}
	}
	s := newSetup(t, known)

	res, err := s.orch.SendBulk(context.Background(), ids, content())
	require.NoError(t, err)

	assert.Equal(t, 249, res.TotalSent)
	assert.Equal(t, 1, res.TotalFailed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "user-137", res.Errors[0].UserID)
	assert.True(t, apperr.IsNotFound(res.Errors[0].Err))
	assert.Len(t, res.NotificationIDs, 249)
	assert.Equal(t, 249, s.store.Len())

	first, err := s.store.Get(context.Background(), res.NotificationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, notification.StatusPending, first.Status)

	events := s.audits.Events(bulk.AuditAction)
	require.Len(t, events, 1)
	assert.Equal(t, 249, events[0].Metadata["total_sent"])
	assert.Equal(t, 1, events[0].Metadata["total_failed"])
	assert.Equal(t, res.BatchID, events[0].ResourceID)
}

func TestSendBulk_Validation(t *testing.T) {
	t.Parallel()

	s := newSetup(t, nil, bulk.WithMaxRecipients(10))
	blank := content()
	blank.Title = "   "

	tests := []struct {
		name  string
		ids   []string
		c     bulk.Content
		field string
	}{
		{"no recipients", nil, content(), "user_ids"},
		{"too many recipients", userIDs(11), content(), "user_ids"},
		{"blank title", userIDs(1), blank, "title"},
		{"blank message", userIDs(1), bulk.Content{Title: "t"}, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.orch.SendBulk(context.Background(), tt.ids, tt.c)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), verr.Error())
		})
	}

	assert.Zero(t, s.store.Len())
	assert.Empty(t, s.audits.Events(bulk.AuditAction))
}

func TestSendBulk_DefaultCeiling(t *testing.T) {
	t.Parallel()

	s := newSetup(t, nil)
	_, err := s.orch.SendBulk(context.Background(), userIDs(10001), content())
	assert.True(t, apperr.IsValidation(err))
}

func TestSendBulk_TemplateContentNeedsNoTitle(t *testing.T) {
	t.Parallel()

	s := newSetup(t, []string{"user-1"})
	res, err := s.orch.SendBulk(context.Background(), []string{"user-1"}, bulk.Content{
		Template: template.Ref{Name: "holiday"},
	})
	require.NoError(t, err, "blank title is allowed with a template")
	assert.Equal(t, 1, res.TotalFailed, "manager has no template registry")
}

func TestScheduleBulk(t *testing.T) {
	t.Parallel()

	s := newSetup(t, userIDs(3))
	ctx := context.Background()

	at := now.Add(48 * time.Hour)
	res, err := s.orch.ScheduleBulk(ctx, userIDs(3), content(), at)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalSent)

	for _, id := range res.NotificationIDs {
		n, err := s.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusScheduled, n.Status)
		assert.True(t, n.ScheduledFor.Equal(at))
	}

	events := s.audits.Events(bulk.AuditAction)
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Metadata["scheduled_for"])

	for name, bad := range map[string]time.Time{
		"past":          now.Add(-time.Minute),
		"now":           now,
		"over one year": now.Add(366 * 24 * time.Hour),
	} {
		_, err := s.orch.ScheduleBulk(ctx, userIDs(3), content(), bad)
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.True(t, verr.Has("scheduled_for"), name)
	}

	_, err = s.orch.ScheduleBulk(ctx, userIDs(3), content(), now.Add(365*24*time.Hour))
	assert.NoError(t, err, "exactly one year ahead is allowed")
}

type countingCreator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingCreator) Create(_ context.Context, p notification.CreateParams) (*notification.Notification, error) {
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if cur <= peak || c.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	if strings.HasSuffix(p.UserID, "-7") {
		return nil, errors.New("boom")
	}
	return &notification.Notification{ID: "n-" + p.UserID}, nil
}

func TestSendBulk_ChunksAndConcurrency(t *testing.T) {
	t.Parallel()

	creator := &countingCreator{}
	orch, err := bulk.NewOrchestrator(creator,
		bulk.WithChunkSize(10),
		bulk.WithConcurrency(3),
		bulk.WithChunkPause(time.Millisecond),
	)
	require.NoError(t, err)

	res, err := orch.SendBulk(context.Background(), userIDs(25), content())
	require.NoError(t, err)
	assert.Equal(t, 23, res.TotalSent, "user-7 and user-17 fail")
	assert.Equal(t, 2, res.TotalFailed)
	assert.LessOrEqual(t, creator.peak.Load(), int32(3))
	assert.Equal(t, "n-user-1", res.NotificationIDs[0])
	assert.Equal(t, "n-user-25", res.NotificationIDs[22])
}

func TestSendBulk_CancelledBetweenChunks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	creator := creatorFunc(func(_ context.Context, p notification.CreateParams) (*notification.Notification, error) {
		if calls.Add(1) == 5 {
			cancel()
		}
		return &notification.Notification{ID: "n-" + p.UserID}, nil
	})
	orch, err := bulk.NewOrchestrator(creator, bulk.WithChunkSize(5), bulk.WithChunkPause(time.Hour))
	require.NoError(t, err)

	res, err := orch.SendBulk(ctx, userIDs(12), content())
	assert.ErrorIs(t, err, bulk.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, res.TotalSent)
	assert.Equal(t, 7, res.TotalFailed)
	assert.Len(t, res.Errors, 7)
}

type creatorFunc func(ctx context.Context, p notification.CreateParams) (*notification.Notification, error)

func (f creatorFunc) Create(ctx context.Context, p notification.CreateParams) (*notification.Notification, error) {
	return f(ctx, p)
}

func TestSendBulk_PanickingCreateIsSettled(t *testing.T) {
	t.Parallel()

	creator := creatorFunc(func(_ context.Context, p notification.CreateParams) (*notification.Notification, error) {
		if p.UserID == "user-3" {
			panic("nil recipient")
		}
		return &notification.Notification{ID: "n-" + p.UserID}, nil
	})
	orch, err := bulk.NewOrchestrator(creator, bulk.WithChunkSize(2), bulk.WithChunkPause(0))
	require.NoError(t, err)

	res, err := orch.SendBulk(context.Background(), userIDs(5), content())
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalSent)
	assert.Equal(t, 1, res.TotalFailed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "user-3", res.Errors[0].UserID)
	assert.ErrorIs(t, res.Errors[0].Err, async.ErrPanic)
	assert.Equal(t, []string{"n-user-1", "n-user-2", "n-user-4", "n-user-5"}, res.NotificationIDs)
}

func TestNewOrchestrator_RequiresCreator(t *testing.T) {
	t.Parallel()
	_, err := bulk.NewOrchestrator(nil)
	assert.ErrorIs(t, err, bulk.ErrCreatorNil)
}
