// Package pgstore persists notifications, templates, preferences and the
// patron directory in PostgreSQL through pgx.
//
// Schema changes live in the embedded goose migrations and are applied with
// Migrate. NotificationStore.Update is a compare-and-set on the status
// column, so several notifier replicas can share one database: a row claimed
// by one replica fails the claim on every other.
package pgstore
