package dispatch

import "time"

// Backoff maps a retry count to the delay before the next attempt.
// Entry i is used after the (i+1)th failure; counts past the end reuse the
// last entry.
type Backoff []time.Duration

// DefaultBackoff is 1m, 5m, 15m, 30m, 1h.
var DefaultBackoff = Backoff{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

// Delay returns the wait after retryCount failed attempts.
func (b Backoff) Delay(retryCount int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	return b[min(max(retryCount-1, 0), len(b)-1)]
}
