package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"
)

type smtpSender struct {
	dialer *mail.Dialer
	config Config
}

// NewSMTPSender creates a sender that delivers through an SMTP relay.
func NewSMTPSender(cfg Config) (EmailSender, error) {
	if cfg.SMTPHost == "" || cfg.SMTPPort <= 0 {
		return nil, fmt.Errorf("%w: SMTP host and port are required", ErrInvalidConfig)
	}
	if err := validateSender(cfg); err != nil {
		return nil, err
	}

	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.Timeout = 10 * time.Second

	return &smtpSender{dialer: d, config: cfg}, nil
}

// SendEmail dials the relay and sends one message. The context is checked
// before dialing; the SMTP exchange itself is bounded by the dialer timeout.
func (s *smtpSender) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg, id := buildMessage(s.config, params)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return "", errors.Join(ErrFailedToSendEmail, err)
	}
	return id, nil
}

func buildMessage(cfg Config, params SendEmailParams) (*mail.Message, string) {
	id := uuid.NewString()

	m := mail.NewMessage()
	m.SetHeader("From", cfg.SenderEmail)
	m.SetHeader("To", params.SendTo)
	m.SetHeader("Subject", params.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, domainOf(cfg.SenderEmail)))
	if cfg.SupportEmail != "" {
		m.SetHeader("Reply-To", cfg.SupportEmail)
	}
	if params.Tag != "" {
		m.SetHeader("X-Tag", params.Tag)
	}

	switch {
	case params.BodyText != "" && params.BodyHTML != "":
		m.SetBody("text/plain", params.BodyText)
		m.AddAlternative("text/html", params.BodyHTML)
	case params.BodyHTML != "":
		m.SetBody("text/html", params.BodyHTML)
	default:
		m.SetBody("text/plain", params.BodyText)
	}
	return m, id
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}
