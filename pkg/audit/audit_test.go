package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/audit"
)

type actorKey struct{}

func TestLogger_Log(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := audit.NewMemoryStorage()
	l := audit.NewLogger(store,
		audit.WithClock(func() time.Time { return at }),
		audit.WithActorExtractor(func(ctx context.Context) (string, bool) {
			v, ok := ctx.Value(actorKey{}).(string)
			return v, ok
		}),
	)

	ctx := context.WithValue(context.Background(), actorKey{}, "librarian-1")
	require.NoError(t, l.Log(ctx, "notifications.bulk_send",
		audit.WithResource("bulk", "b-1"),
		audit.WithMetadata("recipients", 250),
	))
	require.NoError(t, l.LogError(context.Background(), "notifications.bulk_send", errors.New("boom")))

	events := store.Events("notifications.bulk_send")
	require.Len(t, events, 2)
	assert.Equal(t, "librarian-1", events[0].Actor)
	assert.Equal(t, audit.ResultSuccess, events[0].Result)
	assert.Equal(t, 250, events[0].Metadata["recipients"])
	assert.Equal(t, at, events[0].CreatedAt)
	assert.NotEmpty(t, events[0].ID)

	assert.Equal(t, audit.ResultError, events[1].Result)
	assert.Equal(t, "boom", events[1].Error)
	assert.Empty(t, events[1].Actor)
}

func TestLogger_RequiresAction(t *testing.T) {
	t.Parallel()

	l := audit.NewLogger(audit.NewMemoryStorage())
	err := l.Log(context.Background(), "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)

	assert.Panics(t, func() { audit.NewLogger(nil) })
}

func TestLogStorage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := audit.NewLogger(audit.NewLogStorage(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, l.Log(context.Background(), "notifications.bulk_send", audit.WithActor("ops")))

	assert.Contains(t, buf.String(), `"action":"notifications.bulk_send"`)
	assert.Contains(t, buf.String(), `"actor":"ops"`)
}
