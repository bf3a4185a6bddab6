package analytics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes delivery activity as Prometheus metrics.
type Collector struct {
	events       *prometheus.CounterVec
	delivery     *prometheus.HistogramVec
	tickDue      prometheus.Gauge
	tickDuration prometheus.Histogram
	ticksSkipped prometheus.Counter
	expired      prometheus.Counter
}

// NewCollector creates the delivery metrics under namespace. Call Register to expose them.
func NewCollector(namespace string) *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_events_total",
			Help:      "Notification analytics events by type and channel.",
		}, []string{"type", "channel"}),
		delivery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Channel adapter call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel", "outcome"}),
		tickDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_due_notifications",
			Help:      "Notifications picked up by the last scheduler tick.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Ticks skipped because the previous one was still running.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_expired_total",
			Help:      "Notifications marked EXPIRED by the sweeper.",
		}),
	}
}

// Register adds every metric to reg. Already registered collectors are not an error.
func (c *Collector) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, m := range []prometheus.Collector{c.events, c.delivery, c.tickDue, c.tickDuration, c.ticksSkipped, c.expired} {
		if err := reg.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ObserveEvent counts a tracked analytics event by type and channel.
func (c *Collector) ObserveEvent(e Event) {
	c.events.With(prometheus.Labels{"type": string(e.Type), "channel": e.Channel}).Inc()
}

// ObserveDelivery records one adapter call.
func (c *Collector) ObserveDelivery(channel string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.delivery.With(prometheus.Labels{"channel": channel, "outcome": outcome}).Observe(d.Seconds())
}

// ObserveTick records the size and duration of one scheduler tick.
func (c *Collector) ObserveTick(due int, d time.Duration) {
	c.tickDue.Set(float64(due))
	c.tickDuration.Observe(d.Seconds())
}

// TickSkipped counts a tick dropped because the previous one was running.
func (c *Collector) TickSkipped() { c.ticksSkipped.Inc() }

// Expired counts notifications moved to EXPIRED.
func (c *Collector) Expired(n int) { c.expired.Add(float64(n)) }
