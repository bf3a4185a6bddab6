package channel

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/webhook"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// SMSGateway posts text messages to an HTTP SMS gateway. Requests are
// signed by the webhook sender, so the gateway authenticates them with the
// shared token configured as the sender's signing secret.
type SMSGateway struct {
	endpoint string
	sender   *webhook.Sender
}

type smsRequest struct {
	To        string `json:"to"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// NewSMSGateway creates the SMS adapter posting to endpoint.
func NewSMSGateway(endpoint string, sender *webhook.Sender) *SMSGateway {
	return &SMSGateway{endpoint: endpoint, sender: sender}
}

func (*SMSGateway) Channel() notification.Channel { return notification.ChannelSMS }

func (g *SMSGateway) Send(ctx context.Context, p Payload) (string, error) {
	msg, ok := p.(SMSPayload)
	if !ok {
		return "", Permanent(notification.ChannelSMS, fmt.Errorf("%w: %T", ErrPayloadMismatch, p))
	}
	req := smsRequest{To: msg.To, Text: msg.Text, Reference: msg.NotificationID}
	if _, err := g.sender.Send(ctx, g.endpoint, msg.NotificationID, req); err != nil {
		return "", classifyWebhook(notification.ChannelSMS, err)
	}
	return msg.NotificationID, nil
}
