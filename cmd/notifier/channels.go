package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/libraryops/pkg/email"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/webhook"
	"github.com/dmitrymomot/libraryops/svc/channel"
)

// buildChannels registers an adapter for every configured channel. Email and
// in-app are always available; SMS, push and webhook need their settings.
func buildChannels(ctx context.Context, cfg AppConfig, log *slog.Logger) (*channel.Registry, error) {
	wrap := func(s channel.Sender) channel.Sender {
		return channel.Wrap(s, cfg.ChannelRatePerSecond, cfg.ChannelTimeout)
	}
	reg := channel.NewRegistry()

	mailer, err := email.New(cfg.Email)
	if err != nil {
		return nil, err
	}
	reg.Register(wrap(channel.NewEmail(mailer)))

	reg.Register(channel.NewInApp(
		channel.WithInAppLogger(log),
		channel.WithMaxUsers(cfg.InAppMaxUsers),
	))

	if cfg.SMSGatewayURL != "" {
		gateway := webhook.NewSender(
			webhook.WithSigningSecret(cfg.SMSGatewayToken),
			webhook.WithTimeout(cfg.ChannelTimeout),
			webhook.WithUserAgent(cfg.AppName),
		)
		reg.Register(wrap(channel.NewSMSGateway(cfg.SMSGatewayURL, gateway)))
	}

	if cfg.FirebaseCredentialsFile != "" {
		client, err := channel.NewFirebaseMessaging(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		reg.Register(wrap(channel.NewPush(client, channel.WithPushLogger(log))))
	}

	if cfg.WebhookSigningSecret != "" {
		sender := webhook.NewSender(
			webhook.WithSigningSecret(cfg.WebhookSigningSecret),
			webhook.WithTimeout(cfg.ChannelTimeout),
			webhook.WithUserAgent(cfg.AppName),
		)
		reg.Register(wrap(channel.NewWebhook(sender)))
	}

	log.LogAttrs(ctx, slog.LevelDebug, "channels registered",
		logger.Component("notifier"),
		slog.Any("channels", reg.Channels()),
	)
	return reg, nil
}
