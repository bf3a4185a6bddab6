// Package analytics records notification delivery and engagement events and
// turns them into rates: delivery (delivered/sent), open (opened/delivered),
// click (clicked/opened) and failure (failed/sent).
//
// Events are appended to a Store; MemoryStore ships here and a MongoDB store
// lives in svc/mongostore. A Collector mirrors the same activity into
// Prometheus for dashboards.
package analytics
