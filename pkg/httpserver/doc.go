// Package httpserver runs the notifier's operational HTTP surface: a
// readiness endpoint and the Prometheus scrape endpoint.
//
//	srv := httpserver.New(cfg.Options()...)
//	g.Go(srv.Run(ctx, httpserver.OpsRouter(registry, checks...)))
//
// Start blocks until its context ends and then shuts down within the
// configured timeout.
package httpserver
