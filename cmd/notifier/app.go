package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/dmitrymomot/libraryops/pkg/audit"
	"github.com/dmitrymomot/libraryops/pkg/httpserver"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/bulk"
	"github.com/dmitrymomot/libraryops/svc/channel"
	"github.com/dmitrymomot/libraryops/svc/dispatch"
	"github.com/dmitrymomot/libraryops/svc/events"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/preference"
	"github.com/dmitrymomot/libraryops/svc/template"
)

type app struct {
	scheduler *dispatch.Scheduler
	sweeper   *dispatch.Sweeper
	consumer  *events.Consumer
	channels  *channel.Registry
}

func buildApp(ctx context.Context, cfg AppConfig, b *backends, collector *analytics.Collector, log *slog.Logger) (*app, error) {
	tracker := analytics.NewTracker(b.events,
		analytics.WithLogger(log),
		analytics.WithCollector(collector),
	)
	prefs := preference.NewService(b.preferences, preference.WithLogger(log))
	templates := template.NewRegistry(b.templates,
		template.WithRegistryLogger(log),
		template.WithNameCache(256, 5*time.Minute),
	)
	if err := seedTemplates(ctx, templates, cfg.TemplateSeedFile); err != nil {
		return nil, err
	}

	manager := notification.NewManager(b.notifications, b.users,
		notification.WithLogger(log),
		notification.WithTemplates(templates),
		notification.WithPreferences(prefs),
		notification.WithTracker(tracker),
		notification.WithDefaultMaxRetries(cfg.DefaultMaxRetries),
	)

	channels, err := buildChannels(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	scheduler, err := dispatch.New(b.notifications, channels, b.users,
		dispatch.WithLogger(log),
		dispatch.WithInterval(cfg.SchedulerInterval),
		dispatch.WithBatchSize(cfg.SchedulerBatchSize),
		dispatch.WithConcurrency(cfg.SchedulerConcurrency),
		dispatch.WithPreferences(prefs),
		dispatch.WithTracker(tracker),
		dispatch.WithCollector(collector),
	)
	if err != nil {
		return nil, err
	}

	sweepAt, err := dispatch.ParseDailyAt(cfg.ExpirySweepAt)
	if err != nil {
		return nil, err
	}
	sweeper, err := dispatch.NewSweeper(b.notifications, sweepAt,
		dispatch.WithSweeperLogger(log),
		dispatch.WithSweeperCollector(collector),
	)
	if err != nil {
		return nil, err
	}

	orchestrator, err := bulk.NewOrchestrator(manager,
		bulk.WithLogger(log),
		bulk.WithAuditor(audit.NewLogger(audit.NewLogStorage(log))),
		bulk.WithChunkSize(cfg.BulkChunkSize),
		bulk.WithMaxRecipients(cfg.BulkMaxRecipients),
		bulk.WithChunkPause(cfg.BulkChunkPause),
	)
	if err != nil {
		return nil, err
	}

	a := &app{scheduler: scheduler, sweeper: sweeper, channels: channels}
	if cfg.AMQP.URL == "" {
		log.LogAttrs(ctx, slog.LevelWarn, "AMQP_URL is empty, event consumer disabled",
			logger.Component("notifier"),
		)
		return a, nil
	}

	dispatcher, err := buildDispatcher(cfg, manager, orchestrator, log)
	if err != nil {
		return nil, err
	}
	a.consumer = events.NewConsumer(dispatcher, cfg.AMQP, events.WithConsumerLogger(log))
	b.healthchecks = append(b.healthchecks, httpserver.HealthCheck{Name: "amqp", Check: a.consumer.Healthcheck})
	return a, nil
}

func seedTemplates(ctx context.Context, r *template.Registry, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open template seed file: %w", err)
	}
	defer f.Close()

	_, err = r.SeedSystemTemplates(ctx, f)
	return err
}

// buildDispatcher registers the default event mappings, overridden per event
// type by EVENT_MAPPINGS_FILE, plus the announcement handler.
func buildDispatcher(cfg AppConfig, manager *notification.Manager, orchestrator *bulk.Orchestrator, log *slog.Logger) (*events.Dispatcher, error) {
	mappings := events.DefaultMappings()
	if cfg.EventMappingsFile != "" {
		f, err := os.Open(cfg.EventMappingsFile)
		if err != nil {
			return nil, fmt.Errorf("open event mappings: %w", err)
		}
		overrides, err := events.LoadMappings(f)
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return nil, err
		}
		maps.Copy(mappings, overrides)
	}

	d := events.NewDispatcher(events.WithLogger(log))
	if err := events.RegisterMappings(d, manager, mappings, nil); err != nil {
		return nil, err
	}
	via := notification.Channel(strings.ToUpper(cfg.AnnouncementVia))
	if !via.Valid() {
		return nil, fmt.Errorf("ANNOUNCEMENT_CHANNEL: unknown channel %q", cfg.AnnouncementVia)
	}
	if err := d.Handle(events.AnnouncementEvent, events.AnnouncementHandler(orchestrator, via, log)); err != nil {
		return nil, err
	}
	return d, nil
}
