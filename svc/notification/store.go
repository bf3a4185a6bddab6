package notification

import (
	"context"
	"time"
)

// Store is the persistence contract used by the lifecycle manager, the
// scheduler and the expiry sweeper. Implementations return
// ErrNotificationNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, id string) (Notification, error)

	// Update replaces the row only if its stored status still equals
	// expected, returning ErrStaleStatus otherwise. This is the per-row
	// compare-and-set that keeps a cancelled row from being resurrected.
	Update(ctx context.Context, n Notification, expected Status) error

	// QueryDue returns PENDING and SCHEDULED rows with ScheduledFor <= now,
	// oldest first, at most limit rows.
	QueryDue(ctx context.Context, now time.Time, limit int) ([]Notification, error)

	// QueryExpirable returns non-terminal rows with ExpiresAt < now.
	QueryExpirable(ctx context.Context, now time.Time, limit int) ([]Notification, error)

	QueryByUser(ctx context.Context, userID string, f Filter) ([]Notification, error)

	// CountUnread counts SENT rows without ReadAt.
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Filter narrows QueryByUser. Results are ordered newest first.
type Filter struct {
	Statuses   []Status
	Channel    Channel
	Category   string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// DueStatuses are the statuses the scheduler claims.
var DueStatuses = []Status{StatusPending, StatusScheduled}

// NonTerminalStatuses are the statuses the expiry sweep may flip.
var NonTerminalStatuses = []Status{StatusPending, StatusScheduled, StatusSending}
