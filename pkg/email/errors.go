package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email: failed to send")
	ErrRecipientRejected = errors.New("email: recipient rejected by provider")
	ErrInvalidParams     = errors.New("email: invalid message parameters")
	ErrInvalidConfig     = errors.New("email: invalid configuration")
)

// IsPermanent reports whether a send error will fail again on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRecipientRejected) || errors.Is(err, ErrInvalidParams)
}
