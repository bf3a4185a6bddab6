package channel

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/email"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Email delivers EmailPayloads through an email.EmailSender.
type Email struct {
	sender email.EmailSender
}

// NewEmail creates the EMAIL adapter over sender.
func NewEmail(sender email.EmailSender) *Email {
	return &Email{sender: sender}
}

func (*Email) Channel() notification.Channel { return notification.ChannelEmail }

func (e *Email) Send(ctx context.Context, p Payload) (string, error) {
	msg, ok := p.(EmailPayload)
	if !ok {
		return "", Permanent(notification.ChannelEmail, fmt.Errorf("%w: %T", ErrPayloadMismatch, p))
	}

	id, err := e.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.To,
		Subject:  msg.Subject,
		BodyText: msg.Text,
		Tag:      msg.Tag,
		Metadata: msg.Metadata,
	})
	if err != nil {
		if email.IsPermanent(err) {
			return "", Permanent(notification.ChannelEmail, err)
		}
		return "", Transient(notification.ChannelEmail, err)
	}
	return id, nil
}
