package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// SignatureHeaders carries the signature headers of one delivery.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
	ID        string
}

// Apply sets the signature headers on h.
func (s SignatureHeaders) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Signature)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// SignPayload computes hex(HMAC-SHA256(secret, "<unix ts>.<payload>")).
// id is echoed in X-Webhook-ID so receivers can deduplicate retries.
func SignPayload(secret string, payload []byte, at time.Time, id string) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return SignatureHeaders{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := at.Unix()
	return SignatureHeaders{
		Signature: sign(secret, ts, payload),
		Timestamp: ts,
		ID:        id,
	}, nil
}

// VerifySignature checks a received signature in constant time and rejects
// timestamps older than maxAge (when maxAge > 0).
func VerifySignature(secret string, payload []byte, h http.Header, now time.Time, maxAge time.Duration) error {
	sig := h.Get(HeaderSignature)
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if sig == "" || err != nil {
		return fmt.Errorf("%w: missing signature headers", ErrSignatureMismatch)
	}
	if maxAge > 0 && now.Sub(time.Unix(ts, 0)) > maxAge {
		return fmt.Errorf("%w: timestamp too old", ErrSignatureMismatch)
	}
	if !hmac.Equal([]byte(sign(secret, ts, payload)), []byte(sig)) {
		return ErrSignatureMismatch
	}
	return nil
}

func sign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts, payload)
	return hex.EncodeToString(mac.Sum(nil))
}
