package notification

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxRetries is applied when a notification is created without one.
const DefaultMaxRetries = 3

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelPush    Channel = "PUSH"
	ChannelInApp   Channel = "IN_APP"
	ChannelWebhook Channel = "WEBHOOK"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp, ChannelWebhook}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp, ChannelWebhook:
		return true
	}
	return false
}

func (c Channel) String() string { return string(c) }

// Priority orders notifications: LOW < MEDIUM < HIGH < URGENT < CRITICAL.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "LOW",
	PriorityMedium:   "MEDIUM",
	PriorityHigh:     "HIGH",
	PriorityUrgent:   "URGENT",
	PriorityCritical: "CRITICAL",
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority parses a case-insensitive priority name.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Notification is a single addressed, channel-specific message.
type Notification struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Type         string         `json:"type,omitempty"`
	Category     string         `json:"category,omitempty"`
	Priority     Priority       `json:"priority"`
	Channel      Channel        `json:"channel"`
	TemplateID   string         `json:"template_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Status       Status         `json:"status"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	MaxRetries   int            `json:"max_retries"`
	RetryCount   int            `json:"retry_count"`
	ErrorMessage string         `json:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	ReadAt       *time.Time     `json:"read_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsRead reports whether the user has read the notification.
func (n *Notification) IsRead() bool { return n.ReadAt != nil }

// IsExpired reports whether ExpiresAt is set and before now.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// RetriesLeft reports whether another failed attempt would still be rescheduled.
func (n *Notification) RetriesLeft() bool {
	return n.RetryCount < n.MaxRetries
}

// AnalyticsMetadata is the metadata attached to analytics events for n.
func (n *Notification) AnalyticsMetadata() map[string]any {
	return map[string]any{
		"channel":  string(n.Channel),
		"category": n.Category,
		"priority": n.Priority.String(),
	}
}

func ptr[T any](v T) *T { return &v }
