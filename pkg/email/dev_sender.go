package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes each email to dir as a JSON file instead of sending it.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a development sender. The directory is created on first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devEmail struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	SendEmailParams
}

// SendEmail writes the message to the output directory instead of sending it.
func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %w", ErrFailedToSendEmail, err)
	}

	now := d.now()
	id := uuid.NewString()
	identifier := params.Tag
	if identifier == "" {
		identifier = params.Subject
	}
	name := fmt.Sprintf("%s_%s_%s.json", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	data, err := json.MarshalIndent(devEmail{
		ID:             id,
		Timestamp:      now.Format(time.RFC3339),
		SendEmailParams: params,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal email: %w", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write email file: %w", ErrFailedToSendEmail, err)
	}
	return id, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = sanitizeRegex.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
