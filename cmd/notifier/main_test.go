package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/events"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/template"
)

func testConfig(t *testing.T) AppConfig {
	t.Helper()
	return AppConfig{
		AppName:         "notifier-test",
		AppEnv:          "development",
		ExpirySweepAt:   "03:00",
		AnnouncementVia: "in_app",
		ChannelTimeout:  time.Second,
	}
}

func TestOpenBackendsInMemory(t *testing.T) {
	t.Parallel()

	b, err := openBackends(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notification.MemoryStore{}, b.notifications)
	assert.IsType(t, &template.MemoryStore{}, b.templates)
	assert.IsType(t, &analytics.MemoryStore{}, b.events)
	assert.Empty(t, b.healthchecks)
	assert.Empty(t, b.closers)
}

func TestBuildAppWithoutBroker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Email.DevDir = t.TempDir()
	cfg.TemplateSeedFile = filepath.Join("..", "..", "configs", "templates.yaml")

	b, err := openBackends(ctx, cfg, logger.Discard())
	require.NoError(t, err)

	a, err := buildApp(ctx, cfg, b, analytics.NewCollector("test"), logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, a.consumer)
	assert.Equal(t, []notification.Channel{notification.ChannelEmail, notification.ChannelInApp}, a.channels.Channels())

	tpl, err := b.templates.GetByName(ctx, "loan_overdue")
	require.NoError(t, err)
	assert.True(t, tpl.IsSystem)
}

func TestBuildAppRejectsBadSweepTime(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.ExpirySweepAt = "25:00"
	b, err := openBackends(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)

	_, err = buildApp(context.Background(), cfg, b, analytics.NewCollector("test"), logger.Discard())
	assert.Error(t, err)
}

func TestBuildDispatcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mappings:
  loan.overdue:
    template: loan_overdue
    channel: SMS
  card.renewed:
    template: card_renewed
`), 0o600))

	cfg := testConfig(t)
	cfg.EventMappingsFile = path

	d, err := buildDispatcher(cfg, &notification.Manager{}, nil, logger.Discard())
	require.NoError(t, err)
	assert.Contains(t, d.Types(), "card.renewed")
	assert.Contains(t, d.Types(), "loan.overdue")
	assert.Contains(t, d.Types(), events.AnnouncementEvent)
	assert.Len(t, d.Types(), len(events.DefaultMappings())+2)

	cfg.AnnouncementVia = "pigeon"
	_, err = buildDispatcher(cfg, &notification.Manager{}, nil, logger.Discard())
	assert.Error(t, err)
}
