package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	StatusCode int
	Duration   time.Duration
}

// Sender posts JSON payloads to webhook endpoints. It makes exactly one
// attempt per Send; retry scheduling belongs to the caller.
// Each endpoint host gets its own circuit breaker.
type Sender struct {
	client    *http.Client
	timeout   time.Duration
	secret    string
	userAgent string
	now       func() time.Time

	breakerFailures  int
	breakerSuccesses int
	breakerRecovery  time.Duration

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewSender creates a webhook sender.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:          10 * time.Second,
		userAgent:        "libraryops-notifier/1.0",
		now:              time.Now,
		breakerFailures:  5,
		breakerSuccesses: 2,
		breakerRecovery:  30 * time.Second,
		breakers:         make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send marshals data to JSON and POSTs it to endpoint. deliveryID is sent as
// X-Webhook-ID. Errors wrap ErrPermanentFailure, ErrTemporaryFailure,
// ErrTimeout, ErrCircuitOpen or ErrInvalidURL.
func (s *Sender) Send(ctx context.Context, endpoint, deliveryID string, data any) (DeliveryResult, error) {
	var result DeliveryResult

	u, err := validateURL(endpoint)
	if err != nil {
		return result, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	cb := s.breaker(u.Host)
	if cb != nil && !cb.Allow() {
		return result, fmt.Errorf("%w: %s", ErrCircuitOpen, u.Host)
	}

	result, err = s.attempt(ctx, endpoint, deliveryID, payload)
	if cb != nil {
		// Receiver-side rejections say nothing about endpoint health.
		if err == nil || errors.Is(err, ErrPermanentFailure) {
			cb.RecordSuccess()
		} else {
			cb.RecordFailure()
		}
	}
	return result, err
}

// CircuitState returns the breaker state for host, CircuitClosed if unseen.
func (s *Sender) CircuitState(host string) CircuitState {
	s.mu.Lock()
	cb, ok := s.breakers[host]
	s.mu.Unlock()
	if !ok {
		return CircuitClosed
	}
	return cb.State()
}

func (s *Sender) breaker(host string) *CircuitBreaker {
	if s.breakerFailures <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[host]
	if !ok {
		cb = NewCircuitBreaker(s.breakerFailures, s.breakerSuccesses, s.breakerRecovery, s.now)
		s.breakers[host] = cb
	}
	return cb
}

func (s *Sender) attempt(ctx context.Context, endpoint, deliveryID string, payload []byte) (DeliveryResult, error) {
	start := time.Now()
	var result DeliveryResult

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	if s.secret != "" {
		sig, err := SignPayload(s.secret, payload, s.now(), deliveryID)
		if err != nil {
			return result, err
		}
		sig.Apply(req.Header)
	} else if deliveryID != "" {
		req.Header.Set(HeaderID, deliveryID)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return result, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	if b := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " ")); b != "" {
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		msg += ": " + b
	}

	if isPermanentStatus(resp.StatusCode) {
		return result, fmt.Errorf("%w: %s", ErrPermanentFailure, msg)
	}
	return result, fmt.Errorf("%w: %s", ErrTemporaryFailure, msg)
}

func validateURL(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}

// 4xx responses are permanent except timeout, too-early and rate limiting.
func isPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
