package channel

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/libraryops/svc/notification"
)

var (
	ErrChannelNotRegistered = errors.New("channel: no adapter registered")
	ErrMissingAddress       = errors.New("channel: recipient has no address for this channel")
	ErrPayloadMismatch      = errors.New("channel: payload does not match adapter")
	ErrUnknownChannel       = errors.New("channel: unknown channel")
)

// DeliveryError is the error adapters return for a failed attempt.
// Permanent errors must not be retried.
type DeliveryError struct {
	Channel   notification.Channel
	Err       error
	Permanent bool
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Channel, kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Permanent wraps err as a non-retryable delivery failure.
func Permanent(ch notification.Channel, err error) error {
	return &DeliveryError{Channel: ch, Err: err, Permanent: true}
}

// Transient wraps err as a retryable delivery failure.
func Transient(ch notification.Channel, err error) error {
	return &DeliveryError{Channel: ch, Err: err}
}

// IsPermanent reports whether err carries a permanent DeliveryError.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}
