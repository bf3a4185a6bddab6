package channel

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/libraryops/svc/notification"
)

type rateLimited struct {
	next    Sender
	limiter *rate.Limiter
}

// RateLimited makes s wait for a token from limiter before every send.
// A wait cut short by ctx is a transient failure.
func RateLimited(s Sender, limiter *rate.Limiter) Sender {
	return &rateLimited{next: s, limiter: limiter}
}

func (r *rateLimited) Channel() notification.Channel { return r.next.Channel() }

func (r *rateLimited) Send(ctx context.Context, p Payload) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", Transient(r.next.Channel(), err)
	}
	return r.next.Send(ctx, p)
}

type timeout struct {
	next Sender
	d    time.Duration
}

// Timeout bounds every send of s by d.
func Timeout(s Sender, d time.Duration) Sender {
	return &timeout{next: s, d: d}
}

func (t *timeout) Channel() notification.Channel { return t.next.Channel() }

func (t *timeout) Send(ctx context.Context, p Payload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Send(ctx, p)
}

// Wrap applies the optional per-channel limits to s: rps > 0 adds a
// RateLimited decorator with burst 1, d > 0 adds a Timeout.
func Wrap(s Sender, rps float64, d time.Duration) Sender {
	if d > 0 {
		s = Timeout(s, d)
	}
	if rps > 0 {
		s = RateLimited(s, rate.NewLimiter(rate.Limit(rps), 1))
	}
	return s
}
