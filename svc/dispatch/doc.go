// Package dispatch moves notifications from waiting to delivered.
//
// Scheduler ticks every interval (60s by default). Each tick queries up to
// batch-size due notifications, oldest scheduled first, claims each one with
// a compare-and-set to SENDING and delivers it through the channel registry
// with bounded concurrency. Every notification settles independently:
//
//   - success sets SENT and SentAt;
//   - a transient failure increments RetryCount and, while retries remain,
//     reschedules after the Backoff delay for that count;
//   - a permanent failure, or the last allowed retry, sets FAILED.
//
// A tick that starts while the previous one is still running is skipped.
//
// Sweeper expires overdue rows on its own Schedule, daily at 03:00 by default.
package dispatch
