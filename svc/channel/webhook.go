package channel

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/webhook"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Webhook posts WebhookPayloads to the URL from the user's preferences.
type Webhook struct {
	sender *webhook.Sender
}

// NewWebhook creates the WEBHOOK adapter.
func NewWebhook(sender *webhook.Sender) *Webhook {
	return &Webhook{sender: sender}
}

func (*Webhook) Channel() notification.Channel { return notification.ChannelWebhook }

func (w *Webhook) Send(ctx context.Context, p Payload) (string, error) {
	msg, ok := p.(WebhookPayload)
	if !ok {
		return "", Permanent(notification.ChannelWebhook, fmt.Errorf("%w: %T", ErrPayloadMismatch, p))
	}
	if _, err := w.sender.Send(ctx, msg.URL, msg.Body.NotificationID, msg.Body); err != nil {
		return "", classifyWebhook(notification.ChannelWebhook, err)
	}
	return msg.Body.NotificationID, nil
}

func classifyWebhook(ch notification.Channel, err error) error {
	if webhook.IsPermanent(err) {
		return Permanent(ch, err)
	}
	return Transient(ch, err)
}
