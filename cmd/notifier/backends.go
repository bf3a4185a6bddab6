package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/libraryops/pkg/httpserver"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/mongo"
	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/pkg/redis"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/mongostore"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/pgstore"
	"github.com/dmitrymomot/libraryops/svc/prefcache"
	"github.com/dmitrymomot/libraryops/svc/preference"
	"github.com/dmitrymomot/libraryops/svc/template"
)

// backends are the storage dependencies of the engine, each either
// networked or in-memory depending on configuration.
type backends struct {
	notifications notification.Store
	templates     template.Store
	preferences   preference.Store
	users         notification.UserDirectory
	events        analytics.Store

	healthchecks []httpserver.HealthCheck
	closers      []func(context.Context) error
}

func openBackends(ctx context.Context, cfg AppConfig, log *slog.Logger) (_ *backends, err error) {
	b := &backends{
		notifications: notification.NewMemoryStore(),
		templates:     template.NewMemoryStore(),
		preferences:   preference.NewMemoryStore(),
		users:         notification.NewMemoryDirectory(),
		events:        analytics.NewMemoryStore(),
	}
	defer func() {
		if err != nil {
			b.close(context.WithoutCancel(ctx), log)
		}
	}()

	if cfg.Postgres.Enabled() {
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
		if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
			return nil, err
		}
		b.notifications = pgstore.NewNotificationStore(pool)
		b.templates = pgstore.NewTemplateStore(pool)
		b.preferences = pgstore.NewPreferenceStore(pool)
		b.users = pgstore.NewDirectory(pool)
		b.healthchecks = append(b.healthchecks, httpserver.HealthCheck{Name: "postgres", Check: pg.Healthcheck(pool)})
	} else {
		log.LogAttrs(ctx, slog.LevelWarn, "PG_CONN_URL is empty, using in-memory stores",
			logger.Component("notifier"),
		)
	}

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.preferences = prefcache.New(b.preferences, client,
			prefcache.WithTTL(cfg.PreferenceCacheTTL),
			prefcache.WithLogger(log),
		)
		b.healthchecks = append(b.healthchecks, httpserver.HealthCheck{Name: "redis", Check: redis.Healthcheck(client)})
	}

	if cfg.Mongo.Enabled() {
		client, db, err := mongo.ConnectDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)
		store := mongostore.NewEventStore(db, mongostore.DefaultCollection)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		b.events = store
		b.healthchecks = append(b.healthchecks, httpserver.HealthCheck{Name: "mongo", Check: mongo.Healthcheck(client)})
	}

	return b, nil
}

// close releases backends in reverse order of opening.
func (b *backends) close(ctx context.Context, log *slog.Logger) {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to close backends",
			logger.Component("notifier"),
			logger.Error(err),
		)
	}
}
