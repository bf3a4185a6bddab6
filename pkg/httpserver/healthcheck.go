package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// HealthHandler runs every check with a shared timeout and reports
// 200 when all pass, 503 otherwise. The body maps check names to "ok" or
// the error text.
func HealthHandler(timeout time.Duration, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				report[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// OpsRouter serves /healthz and /metrics from gatherer.
func OpsRouter(gatherer prometheus.Gatherer, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", HealthHandler(5*time.Second, checks...))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
