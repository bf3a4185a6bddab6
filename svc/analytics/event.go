package analytics

import "time"

// EventType names a delivery or engagement event.
type EventType string

const (
	// EventSent is recorded once per notification, on its first delivery
	// attempt. Each rescheduled attempt is an EventRetried.
	EventSent EventType = "SENT"
	// EventDelivered is recorded when the adapter accepted the message.
	EventDelivered EventType = "DELIVERED"
	// EventFailed is recorded once a notification reaches FAILED.
	EventFailed  EventType = "FAILED"
	EventRetried EventType = "RETRIED"
	EventOpened  EventType = "OPENED"
	EventClicked EventType = "CLICKED"
)

// Event is one append-only analytics record.
type Event struct {
	ID             string         `json:"id" bson:"_id"`
	NotificationID string         `json:"notification_id" bson:"notification_id"`
	UserID         string         `json:"user_id" bson:"user_id"`
	Type           EventType      `json:"type" bson:"type"`
	Channel        string         `json:"channel,omitempty" bson:"channel,omitempty"`
	Category       string         `json:"category,omitempty" bson:"category,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at" bson:"occurred_at"`
}

// Query selects events for metrics. Zero fields do not filter.
type Query struct {
	From     time.Time
	To       time.Time
	Channel  string
	Category string
}

// Match reports whether e falls inside the query window [From, To) and filters.
func (q Query) Match(e Event) bool {
	switch {
	case !q.From.IsZero() && e.OccurredAt.Before(q.From):
		return false
	case !q.To.IsZero() && !e.OccurredAt.Before(q.To):
		return false
	case q.Channel != "" && e.Channel != q.Channel:
		return false
	case q.Category != "" && e.Category != q.Category:
		return false
	}
	return true
}
