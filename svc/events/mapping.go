package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/template"
)

// Creator creates a single notification. *notification.Manager implements it.
type Creator interface {
	Create(ctx context.Context, p notification.CreateParams) (*notification.Notification, error)
}

// Mapping turns one event type into a templated notification.
// Empty Channel and Category fall back to the template's own values.
type Mapping struct {
	Template string                `yaml:"template"`
	Channel  notification.Channel  `yaml:"channel"`
	Category string                `yaml:"category"`
	Priority notification.Priority `yaml:"priority"`
	TTL      time.Duration         `yaml:"ttl"`
}

// DefaultMappings covers the events the circulation and accounts services publish.
func DefaultMappings() map[string]Mapping {
	return map[string]Mapping{
		"loan.overdue": {
			Template: "loan_overdue",
			Channel:  notification.ChannelEmail,
			Category: "loans",
			Priority: notification.PriorityHigh,
			TTL:      72 * time.Hour,
		},
		"loan.due_soon": {
			Template: "loan_due_soon",
			Channel:  notification.ChannelEmail,
			Category: "loans",
			Priority: notification.PriorityMedium,
			TTL:      48 * time.Hour,
		},
		"reservation.fulfilled": {
			Template: "reservation_ready",
			Channel:  notification.ChannelPush,
			Category: "reservations",
			Priority: notification.PriorityHigh,
			TTL:      7 * 24 * time.Hour,
		},
		"reservation.expired": {
			Template: "reservation_expired",
			Channel:  notification.ChannelInApp,
			Category: "reservations",
			Priority: notification.PriorityLow,
		},
		"fine.issued": {
			Template: "fine_issued",
			Channel:  notification.ChannelEmail,
			Category: "fines",
			Priority: notification.PriorityMedium,
		},
		"account.welcome": {
			Template: "welcome",
			Channel:  notification.ChannelEmail,
			Category: "account",
			Priority: notification.PriorityMedium,
		},
	}
}

type mappingFile struct {
	Mappings map[string]Mapping `yaml:"mappings"`
}

// LoadMappings reads a YAML document of the form
//
//	mappings:
//	  loan.overdue:
//	    template: loan_overdue
//	    channel: SMS
//	    priority: urgent
//	    ttl: 24h
func LoadMappings(r io.Reader) (map[string]Mapping, error) {
	var f mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]Mapping{}, nil
		}
		return nil, errors.Join(ErrInvalidMappings, err)
	}

	for _, typ := range slices.Sorted(maps.Keys(f.Mappings)) {
		m := f.Mappings[typ]
		switch {
		case m.Template == "":
			return nil, fmt.Errorf("%w: %s: template is required", ErrInvalidMappings, typ)
		case m.Channel != "" && !m.Channel.Valid():
			return nil, fmt.Errorf("%w: %s: unknown channel %q", ErrInvalidMappings, typ, m.Channel)
		case m.TTL < 0:
			return nil, fmt.Errorf("%w: %s: negative ttl", ErrInvalidMappings, typ)
		}
	}
	if f.Mappings == nil {
		return map[string]Mapping{}, nil
	}
	return f.Mappings, nil
}

// NotificationHandler creates one notification per event using m.
// Event data becomes both the template variables and the notification data.
func NotificationHandler(c Creator, m Mapping, now func() time.Time) Handler {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, e Event) error {
		p := notification.CreateParams{
			UserID:    e.UserID,
			Type:      e.Type,
			Category:  m.Category,
			Priority:  m.Priority,
			Channel:   m.Channel,
			Template:  template.Ref{Name: m.Template},
			Variables: e.Data,
			Data:      e.Data,
		}
		if m.TTL > 0 {
			exp := now().Add(m.TTL)
			p.ExpiresAt = &exp
		}
		if _, err := c.Create(ctx, p); err != nil {
			return fmt.Errorf("create notification for %s: %w", e.Type, err)
		}
		return nil
	}
}

// RegisterMappings registers a NotificationHandler for every mapping.
func RegisterMappings(d *Dispatcher, c Creator, mappings map[string]Mapping, now func() time.Time) error {
	for _, typ := range slices.Sorted(maps.Keys(mappings)) {
		if err := d.Handle(typ, NotificationHandler(c, mappings[typ], now)); err != nil {
			return err
		}
	}
	return nil
}
