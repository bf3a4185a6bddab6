package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Messenger is the part of *messaging.Client the push adapter uses.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NewFirebaseMessaging initializes a Firebase app from a service account
// file and returns its Cloud Messaging client.
func NewFirebaseMessaging(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return client, nil
}

// Push sends PushPayloads to every device token of the recipient.
type Push struct {
	client Messenger
	logger *slog.Logger
}

type PushOption func(*Push)

// WithPushLogger sets the logger for the Push adapter.
func WithPushLogger(l *slog.Logger) PushOption {
	return func(p *Push) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPush creates the PUSH adapter over an FCM client.
func NewPush(client Messenger, opts ...PushOption) *Push {
	p := &Push{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*Push) Channel() notification.Channel { return notification.ChannelPush }

// Send succeeds when at least one device accepted the message and returns
// the first message id. When every token fails the attempt is permanent
// only if every failure was permanent.
func (p *Push) Send(ctx context.Context, payload Payload) (string, error) {
	msg, ok := payload.(PushPayload)
	if !ok {
		return "", Permanent(notification.ChannelPush, fmt.Errorf("%w: %T", ErrPayloadMismatch, payload))
	}
	if len(msg.Tokens) == 0 {
		return "", Permanent(notification.ChannelPush, ErrMissingAddress)
	}

	var (
		firstID   string
		errs      []error
		permanent = true
	)
	for _, token := range msg.Tokens {
		id, err := p.client.Send(ctx, fcmMessage(token, msg))
		if err != nil {
			errs = append(errs, err)
			if !isPermanentPushError(err) {
				permanent = false
			}
			p.logger.LogAttrs(ctx, slog.LevelWarn, "push token rejected",
				logger.NotificationID(msg.NotificationID),
				logger.Error(err),
			)
			continue
		}
		if firstID == "" {
			firstID = id
		}
	}

	if firstID != "" {
		return firstID, nil
	}
	err := errors.Join(errs...)
	if permanent {
		return "", Permanent(notification.ChannelPush, err)
	}
	return "", Transient(notification.ChannelPush, err)
}

func fcmMessage(token string, msg PushPayload) *messaging.Message {
	androidPriority, apnsPriority := "normal", "5"
	if msg.HighPriority {
		androidPriority, apnsPriority = "high", "10"
	}
	return &messaging.Message{
		Token: token,
		Data:  msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{Priority: androidPriority},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
		},
	}
}

// Unregistered or malformed tokens will fail the same way on every retry.
func isPermanentPushError(err error) bool {
	return messaging.IsUnregistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err)
}
