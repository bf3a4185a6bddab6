package events_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/events"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

var fixedNow = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingCreator struct {
	mu     sync.Mutex
	params []notification.CreateParams
	err    error
}

func (c *recordingCreator) Create(_ context.Context, p notification.CreateParams) (*notification.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.params = append(c.params, p)
	return &notification.Notification{ID: "n-1", UserID: p.UserID}, nil
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		e, err := events.Decode([]byte(`{"type":"loan.overdue","userId":"u-1","data":{"title":"Dune"},"correlationId":"c-9"}`))
		require.NoError(t, err)
		assert.Equal(t, "loan.overdue", e.Type)
		assert.Equal(t, "u-1", e.UserID)
		assert.Equal(t, "Dune", e.Data["title"])
		assert.Equal(t, "c-9", e.CorrelationID)
	})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "malformed", body: `{"type":`, field: "body"},
		{name: "missing type", body: `{"userId":"u-1"}`, field: "type"},
		{name: "missing user", body: `{"type":"loan.overdue"}`, field: "userId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := events.Decode([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.ErrorIs(t, err, events.ErrInvalidEvent)

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field))
		})
	}
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("routes by type and carries correlation id", func(t *testing.T) {
		t.Parallel()
		d := events.NewDispatcher(events.WithLogger(logger.Discard()))

		var got events.Event
		var corr string
		require.NoError(t, d.Handle("loan.overdue", func(ctx context.Context, e events.Event) error {
			got = e
			corr, _ = events.CorrelationID(ctx)
			return nil
		}))

		err := d.Dispatch(context.Background(), events.Event{Type: "loan.overdue", UserID: "u-1", CorrelationID: "c-1"})
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.UserID)
		assert.Equal(t, "c-1", corr)
	})

	t.Run("duplicate handler", func(t *testing.T) {
		t.Parallel()
		d := events.NewDispatcher()
		noop := func(context.Context, events.Event) error { return nil }
		require.NoError(t, d.Handle("fine.issued", noop))
		assert.ErrorIs(t, d.Handle("fine.issued", noop), events.ErrDuplicateHandler)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		d := events.NewDispatcher()
		err := d.Dispatch(context.Background(), events.Event{Type: "book.burned", UserID: "u-1"})
		assert.ErrorIs(t, err, events.ErrUnhandledEvent)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("handler error is returned", func(t *testing.T) {
		t.Parallel()
		d := events.NewDispatcher()
		boom := errors.New("boom")
		require.NoError(t, d.Handle("fine.issued", func(context.Context, events.Event) error { return boom }))
		assert.ErrorIs(t, d.Dispatch(context.Background(), events.Event{Type: "fine.issued", UserID: "u-1"}), boom)
	})

	t.Run("types sorted", func(t *testing.T) {
		t.Parallel()
		d := events.NewDispatcher()
		require.NoError(t, events.RegisterMappings(d, &recordingCreator{}, events.DefaultMappings(), clock))
		assert.Equal(t, []string{
			"account.welcome",
			"fine.issued",
			"loan.due_soon",
			"loan.overdue",
			"reservation.expired",
			"reservation.fulfilled",
		}, d.Types())
	})
}

func TestLoadMappings(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		doc := `
mappings:
  loan.overdue:
    template: loan_overdue
    channel: SMS
    category: loans
    priority: urgent
    ttl: 24h
  account.welcome:
    template: welcome
`
		m, err := events.LoadMappings(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, m, 2)
		assert.Equal(t, events.Mapping{
			Template: "loan_overdue",
			Channel:  notification.ChannelSMS,
			Category: "loans",
			Priority: notification.PriorityUrgent,
			TTL:      24 * time.Hour,
		}, m["loan.overdue"])
		assert.Equal(t, "welcome", m["account.welcome"].Template)
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()
		m, err := events.LoadMappings(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	invalid := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: "mappings:\n  a.b:\n    tempalte: x\n"},
		{name: "missing template", doc: "mappings:\n  a.b:\n    channel: EMAIL\n"},
		{name: "unknown channel", doc: "mappings:\n  a.b:\n    template: x\n    channel: FAX\n"},
		{name: "bad priority", doc: "mappings:\n  a.b:\n    template: x\n    priority: whenever\n"},
		{name: "negative ttl", doc: "mappings:\n  a.b:\n    template: x\n    ttl: -1h\n"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := events.LoadMappings(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, events.ErrInvalidMappings)
		})
	}
}

func TestNotificationHandler(t *testing.T) {
	t.Parallel()

	c := &recordingCreator{}
	h := events.NotificationHandler(c, events.DefaultMappings()["loan.overdue"], clock)

	data := map[string]any{"title": "Dune", "due_date": "2025-03-01"}
	require.NoError(t, h(context.Background(), events.Event{Type: "loan.overdue", UserID: "u-1", Data: data}))

	require.Len(t, c.params, 1)
	p := c.params[0]
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "loan.overdue", p.Type)
	assert.Equal(t, "loan_overdue", p.Template.Name)
	assert.Equal(t, notification.ChannelEmail, p.Channel)
	assert.Equal(t, notification.PriorityHigh, p.Priority)
	assert.Equal(t, data, p.Variables)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, fixedNow.Add(72*time.Hour), *p.ExpiresAt)

	t.Run("no ttl means no expiry", func(t *testing.T) {
		t.Parallel()
		c := &recordingCreator{}
		h := events.NotificationHandler(c, events.Mapping{Template: "welcome"}, clock)
		require.NoError(t, h(context.Background(), events.Event{Type: "account.welcome", UserID: "u-2"}))
		assert.Nil(t, c.params[0].ExpiresAt)
	})

	t.Run("creator error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("store down")
		h := events.NotificationHandler(&recordingCreator{err: boom}, events.Mapping{Template: "welcome"}, clock)
		assert.ErrorIs(t, h(context.Background(), events.Event{Type: "account.welcome", UserID: "u-2"}), boom)
	})
}

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

func TestConsumerHandle(t *testing.T) {
	t.Parallel()

	transient := errors.New("db timeout")

	newConsumer := func(t *testing.T, seen *string) *events.Consumer {
		t.Helper()
		d := events.NewDispatcher(events.WithLogger(logger.Discard()))
		require.NoError(t, d.Handle("loan.overdue", func(ctx context.Context, e events.Event) error {
			*seen, _ = events.CorrelationID(ctx)
			return nil
		}))
		require.NoError(t, d.Handle("fine.issued", func(context.Context, events.Event) error {
			return transient
		}))
		require.NoError(t, d.Handle("account.welcome", func(context.Context, events.Event) error {
			return apperr.NotFound(notification.ErrUserNotFound, "user", "u-1")
		}))
		return events.NewConsumer(d, events.Config{}, events.WithConsumerLogger(logger.Discard()))
	}

	tests := []struct {
		name        string
		body        string
		redelivered bool
		want        events.Outcome
		acked       int
		nacked      int
		requeue     bool
	}{
		{name: "handled", body: `{"type":"loan.overdue","userId":"u-1"}`, want: events.OutcomeAcked, acked: 1},
		{name: "malformed", body: `not json`, want: events.OutcomeRejected, nacked: 1},
		{name: "unknown type", body: `{"type":"x.y","userId":"u-1"}`, want: events.OutcomeRejected, nacked: 1},
		{name: "unknown user", body: `{"type":"account.welcome","userId":"u-1"}`, want: events.OutcomeRejected, nacked: 1},
		{name: "transient", body: `{"type":"fine.issued","userId":"u-1"}`, want: events.OutcomeRequeued, nacked: 1, requeue: true},
		{name: "transient redelivered", body: `{"type":"fine.issued","userId":"u-1"}`, redelivered: true, want: events.OutcomeDropped, nacked: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var seen string
			c := newConsumer(t, &seen)
			ack := &ackRecorder{}

			got := c.Handle(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  1,
				Body:         []byte(tt.body),
				Redelivered:  tt.redelivered,
			})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.acked, ack.acked)
			assert.Equal(t, tt.nacked, ack.nacked)
			assert.Equal(t, tt.requeue, ack.requeue)
		})
	}

	t.Run("correlation id from message property", func(t *testing.T) {
		t.Parallel()
		var seen string
		c := newConsumer(t, &seen)
		c.Handle(context.Background(), amqp.Delivery{
			Acknowledger:  &ackRecorder{},
			CorrelationId: "corr-42",
			Body:          []byte(`{"type":"loan.overdue","userId":"u-1"}`),
		})
		assert.Equal(t, "corr-42", seen)
	})
}

func TestConsumerNotConnected(t *testing.T) {
	t.Parallel()

	c := events.NewConsumer(events.NewDispatcher(), events.Config{})
	assert.ErrorIs(t, c.Healthcheck(context.Background()), events.ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestCorrelationExtractor(t *testing.T) {
	t.Parallel()

	extract := events.CorrelationExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	attr, ok := extract(events.WithCorrelationID(context.Background(), "c-7"))
	require.True(t, ok)
	assert.Equal(t, logger.CorrelationID("c-7").Key, attr.Key)
	assert.Equal(t, slog.StringValue("c-7").String(), attr.Value.String())
}
