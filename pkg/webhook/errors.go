package webhook

import "errors"

// Delivery failures fall in two families: permanent ones (the receiver
// rejected the request, retrying cannot help) and temporary ones (network,
// timeout, 5xx, rate limiting).
var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
	ErrTimeout              = errors.New("webhook request timeout")
	ErrCircuitOpen          = errors.New("webhook circuit breaker is open")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
)

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrInvalidPayload)
}
