package email

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/validator"
)

// EmailSender sends one email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (string, error)
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string            `json:"send_to"`
	Subject  string            `json:"subject"`
	BodyText string            `json:"body_text"`
	BodyHTML string            `json:"body_html,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the recipient address, the subject and that a body is present.
func (p SendEmailParams) Validate() error {
	err := validator.Apply(
		validator.ValidEmail("send_to", p.SendTo),
		validator.RequiredString("subject", p.Subject),
		validator.RequiredString("body", p.BodyText+p.BodyHTML),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// New picks a sender from cfg: Postmark when tokens are present, SMTP when a
// host is set, the on-disk DevSender otherwise.
func New(cfg Config) (EmailSender, error) {
	switch {
	case cfg.PostmarkServerToken != "":
		return NewPostmarkClient(cfg)
	case cfg.SMTPHost != "":
		return NewSMTPSender(cfg)
	default:
		return NewDevSender(cfg.DevDir), nil
	}
}

func validateSender(cfg Config) error {
	err := validator.Apply(
		validator.ValidEmail("sender_email", cfg.SenderEmail),
		validator.When(cfg.SupportEmail != "", validator.ValidEmail("support_email", cfg.SupportEmail)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
