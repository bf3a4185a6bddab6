package webhook

import (
	"net/http"
	"time"
)

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout bounds a single delivery attempt. Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSigningSecret signs every payload with HMAC-SHA256.
func WithSigningSecret(secret string) Option {
	return func(s *Sender) { s.secret = secret }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Sender) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithCircuitBreaker configures the per-host breakers. A failureThreshold
// of 0 disables circuit breaking.
func WithCircuitBreaker(failureThreshold, successThreshold int, recovery time.Duration) Option {
	return func(s *Sender) {
		s.breakerFailures = failureThreshold
		s.breakerSuccesses = successThreshold
		s.breakerRecovery = recovery
	}
}

// WithClock overrides the time source used for signatures and breakers.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}
