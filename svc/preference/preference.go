package preference

import (
	"strings"
	"time"
)

// Frequency is how often digest deliveries go out.
type Frequency string

const (
	DigestDaily  Frequency = "DAILY"
	DigestWeekly Frequency = "WEEKLY"
)

// DefaultDigestTime is used when digest is enabled without a time of day.
const DefaultDigestTime = "09:00"

// Digest configures batched delivery of low-priority notifications.
type Digest struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency,omitempty"`
	Time      string    `json:"time,omitempty"`
}

// Preferences is one user's delivery settings. A nil channel flag means the
// channel was never configured and counts as enabled.
type Preferences struct {
	UserID string `json:"user_id"`

	Email   *bool `json:"email,omitempty"`
	SMS     *bool `json:"sms,omitempty"`
	Push    *bool `json:"push,omitempty"`
	InApp   *bool `json:"in_app,omitempty"`
	Webhook *bool `json:"webhook,omitempty"`

	WebhookURL string `json:"webhook_url,omitempty"`

	QuietHoursStart string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   string `json:"quiet_hours_end,omitempty"`
	Timezone        string `json:"timezone,omitempty"`

	Categories map[string]bool `json:"categories,omitempty"`
	Digest     Digest          `json:"digest"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Enabled is a helper for building channel flags.
func Enabled(v bool) *bool { return &v }

// HasQuietHours reports whether a quiet-hours window is configured.
func (p *Preferences) HasQuietHours() bool {
	return p != nil && p.QuietHoursStart != "" && p.QuietHoursEnd != ""
}

// Location returns the user's time zone, falling back to UTC when the zone
// is empty or unknown.
func (p *Preferences) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p *Preferences) channelFlag(channel string) *bool {
	switch strings.ToUpper(channel) {
	case "EMAIL":
		return p.Email
	case "SMS":
		return p.SMS
	case "PUSH":
		return p.Push
	case "IN_APP":
		return p.InApp
	case "WEBHOOK":
		return p.Webhook
	}
	return nil
}
