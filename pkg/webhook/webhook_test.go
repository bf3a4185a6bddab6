package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/webhook"
)

type payload struct {
	Title string `json:"title"`
}

func TestSender_SuccessSignsPayload(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	var gotHeader http.Header
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := webhook.NewSender(
		webhook.WithSigningSecret("s3cret"),
		webhook.WithClock(func() time.Time { return now }),
	)

	res, err := s.Send(context.Background(), srv.URL, "n-1", payload{Title: "Book ready"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	var p payload
	require.NoError(t, json.Unmarshal(gotBody, &p))
	assert.Equal(t, "Book ready", p.Title)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "n-1", gotHeader.Get(webhook.HeaderID))
	assert.NoError(t, webhook.VerifySignature("s3cret", gotBody, gotHeader, now, time.Minute))
	assert.ErrorIs(t, webhook.VerifySignature("other", gotBody, gotHeader, now, time.Minute), webhook.ErrSignatureMismatch)
	assert.ErrorIs(t, webhook.VerifySignature("s3cret", gotBody, gotHeader, now.Add(time.Hour), time.Minute), webhook.ErrSignatureMismatch)
}

func TestSender_ClassifiesStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"bad request", http.StatusBadRequest, true},
		{"gone", http.StatusGone, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			_, err := webhook.NewSender().Send(context.Background(), srv.URL, "", payload{})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, webhook.IsPermanent(err))
			assert.Contains(t, err.Error(), "nope")
			if !tt.permanent {
				assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
			}
		})
	}
}

func TestSender_InvalidURL(t *testing.T) {
	t.Parallel()

	s := webhook.NewSender()
	for _, u := range []string{"", "ftp://example.com", "http://"} {
		_, err := s.Send(context.Background(), u, "", payload{})
		assert.ErrorIs(t, err, webhook.ErrInvalidURL, u)
		assert.True(t, webhook.IsPermanent(err))
	}
}

func TestSender_CircuitOpensPerHost(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	s := webhook.NewSender(
		webhook.WithCircuitBreaker(2, 1, time.Minute),
		webhook.WithClock(func() time.Time { return now }),
	)

	for range 2 {
		_, err := s.Send(context.Background(), srv.URL, "", payload{})
		require.ErrorIs(t, err, webhook.ErrTemporaryFailure)
	}

	_, err := s.Send(context.Background(), srv.URL, "", payload{})
	assert.ErrorIs(t, err, webhook.ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())
}

func TestSender_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := webhook.NewSender(webhook.WithTimeout(20*time.Millisecond)).
		Send(context.Background(), srv.URL, "", payload{})
	assert.ErrorIs(t, err, webhook.ErrTimeout)
	assert.False(t, webhook.IsPermanent(err))
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	cb := webhook.NewCircuitBreaker(1, 1, time.Second, func() time.Time { return now })

	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, webhook.CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, webhook.CircuitClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}
