// Package webhook delivers JSON payloads to user-configured HTTP endpoints.
//
// Sender makes a single signed POST per call and classifies the outcome:
// 2xx is success; most 4xx responses wrap ErrPermanentFailure; network errors,
// timeouts, 408, 425, 429 and 5xx wrap ErrTemporaryFailure or ErrTimeout.
// A per-host CircuitBreaker short-circuits endpoints that keep failing.
//
// Payloads are signed as hex(HMAC-SHA256(secret, "<unix ts>.<body>")) and
// sent with X-Webhook-Signature, X-Webhook-Timestamp and X-Webhook-ID.
// Receivers verify with VerifySignature.
package webhook
