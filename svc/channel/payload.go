package channel

import (
	"fmt"
	"maps"
	"time"

	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/preference"
)

// Payload is the channel-specific message handed to an adapter.
// The set of implementations is closed: EmailPayload, SMSPayload,
// PushPayload, InAppPayload and WebhookPayload.
type Payload interface {
	Channel() notification.Channel
	isPayload()
}

type EmailPayload struct {
	NotificationID string
	To             string
	Subject        string
	Text           string
	Tag            string
	Metadata       map[string]string
}

type SMSPayload struct {
	NotificationID string
	To             string
	Text           string
}

type PushPayload struct {
	NotificationID string
	Tokens         []string
	Title          string
	Body           string
	Data           map[string]string
	// HighPriority maps to FCM "high" on Android and apns-priority 10.
	HighPriority bool
}

// InAppPayload is what in-app subscribers receive.
type InAppPayload struct {
	NotificationID string         `json:"id"`
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Type           string         `json:"type,omitempty"`
	Category       string         `json:"category,omitempty"`
	Priority       string         `json:"priority"`
	Data           map[string]any `json:"data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type WebhookPayload struct {
	URL  string
	Body WebhookBody
}

// WebhookBody is the JSON document POSTed to user webhooks.
type WebhookBody struct {
	Event          string         `json:"event"`
	NotificationID string         `json:"notification_id"`
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Type           string         `json:"type,omitempty"`
	Category       string         `json:"category,omitempty"`
	Priority       string         `json:"priority"`
	Data           map[string]any `json:"data,omitempty"`
	SentAt         time.Time      `json:"sent_at"`
}

func (EmailPayload) Channel() notification.Channel   { return notification.ChannelEmail }
func (SMSPayload) Channel() notification.Channel     { return notification.ChannelSMS }
func (PushPayload) Channel() notification.Channel    { return notification.ChannelPush }
func (InAppPayload) Channel() notification.Channel   { return notification.ChannelInApp }
func (WebhookPayload) Channel() notification.Channel { return notification.ChannelWebhook }

func (EmailPayload) isPayload()   {}
func (SMSPayload) isPayload()     {}
func (PushPayload) isPayload()    {}
func (InAppPayload) isPayload()   {}
func (WebhookPayload) isPayload() {}

// BuildPayload assembles the payload for n's channel. A recipient without an
// address for the channel yields a permanent DeliveryError wrapping
// ErrMissingAddress.
func BuildPayload(n notification.Notification, r notification.Recipient, prefs *preference.Preferences, now time.Time) (Payload, error) {
	switch n.Channel {
	case notification.ChannelEmail:
		if r.Email == "" {
			return nil, Permanent(n.Channel, ErrMissingAddress)
		}
		return EmailPayload{
			NotificationID: n.ID,
			To:             r.Email,
			Subject:        n.Title,
			Text:           n.Message,
			Tag:            n.Category,
			Metadata:       map[string]string{"notification_id": n.ID, "user_id": n.UserID},
		}, nil

	case notification.ChannelSMS:
		if r.Phone == "" {
			return nil, Permanent(n.Channel, ErrMissingAddress)
		}
		return SMSPayload{NotificationID: n.ID, To: r.Phone, Text: smsText(n)}, nil

	case notification.ChannelPush:
		if len(r.DeviceTokens) == 0 {
			return nil, Permanent(n.Channel, ErrMissingAddress)
		}
		return PushPayload{
			NotificationID: n.ID,
			Tokens:         r.DeviceTokens,
			Title:          n.Title,
			Body:           n.Message,
			Data:           stringData(n),
			HighPriority:   n.Priority >= notification.PriorityHigh,
		}, nil

	case notification.ChannelInApp:
		return InAppPayload{
			NotificationID: n.ID,
			UserID:         n.UserID,
			Title:          n.Title,
			Message:        n.Message,
			Type:           n.Type,
			Category:       n.Category,
			Priority:       n.Priority.String(),
			Data:           maps.Clone(n.Data),
			CreatedAt:      n.CreatedAt,
		}, nil

	case notification.ChannelWebhook:
		if prefs == nil || prefs.WebhookURL == "" {
			return nil, Permanent(n.Channel, ErrMissingAddress)
		}
		return WebhookPayload{
			URL: prefs.WebhookURL,
			Body: WebhookBody{
				Event:          "notification.sent",
				NotificationID: n.ID,
				UserID:         n.UserID,
				Title:          n.Title,
				Message:        n.Message,
				Type:           n.Type,
				Category:       n.Category,
				Priority:       n.Priority.String(),
				Data:           maps.Clone(n.Data),
				SentAt:         now,
			},
		}, nil
	}
	return nil, Permanent(n.Channel, fmt.Errorf("%w: %q", ErrUnknownChannel, n.Channel))
}

func smsText(n notification.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return n.Title + ": " + n.Message
}

func stringData(n notification.Notification) map[string]string {
	out := map[string]string{"notification_id": n.ID}
	if n.Type != "" {
		out["type"] = n.Type
	}
	for k, v := range n.Data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
