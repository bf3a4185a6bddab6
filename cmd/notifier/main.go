package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/libraryops/pkg/config"
	"github.com/dmitrymomot/libraryops/pkg/environment"
	"github.com/dmitrymomot/libraryops/pkg/httpserver"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/events"
)

func main() {
	if err := run(); err != nil {
		slog.Error("notifier stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var cfg AppConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := analytics.NewCollector("notifier")
	if err := collector.Register(reg); err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close(context.WithoutCancel(ctx), log)

	app, err := buildApp(ctx, cfg, b, collector, log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(app.scheduler.Run(ctx))
	g.Go(app.sweeper.Run(ctx))
	if app.consumer != nil {
		g.Go(app.consumer.Run(ctx))
	}
	g.Go(httpserver.New(append(cfg.HTTP.Options(), httpserver.WithLogger(log))...).
		Run(ctx, httpserver.OpsRouter(reg, b.healthchecks...)))

	log.LogAttrs(ctx, slog.LevelInfo, "notifier started",
		slog.Any("channels", app.channels.Channels()),
		slog.String("ops_addr", cfg.HTTP.Addr),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(cfg AppConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(environment.Parse(cfg.AppEnv), cfg.AppName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(events.CorrelationExtractor()),
	}
	if f := logger.Format(cfg.LogFormat); f == logger.FormatJSON || f == logger.FormatText {
		opts = append(opts, logger.WithFormat(f))
	}
	return logger.New(opts...)
}
