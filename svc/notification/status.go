package notification

import (
	"context"

	"github.com/dmitrymomot/libraryops/pkg/statemachine"
)

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusSending   Status = "SENDING"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool { return Lifecycle.IsTerminal(s) }

func (s Status) String() string { return string(s) }

// Event drives a status transition.
type Event string

const (
	EventClaim      Event = "claim"
	EventDeliver    Event = "deliver"
	EventRetry      Event = "retry"
	EventFail       Event = "fail"
	EventCancel     Event = "cancel"
	EventExpire     Event = "expire"
	EventReschedule Event = "reschedule"
	EventRelease    Event = "release"
)

// retriesLeft lets a failed attempt return to SCHEDULED only while the
// already incremented retry count is below the limit.
func retriesLeft(_ context.Context, _ Status, _ Event, data any) bool {
	n, ok := data.(*Notification)
	return ok && n.RetriesLeft()
}

// Lifecycle is the notification status machine. It is stateless; callers
// fire events against a row's current status.
var Lifecycle = statemachine.NewBuilder[Status, Event]().
	From(StatusPending, StatusScheduled).On(EventClaim).To(StatusSending).
	From(StatusSending).On(EventDeliver).To(StatusSent).
	From(StatusSending).On(EventRetry).Guard(retriesLeft).To(StatusScheduled).
	From(StatusSending).On(EventFail).To(StatusFailed).
	From(StatusPending, StatusScheduled).On(EventCancel).To(StatusCancelled).
	From(StatusPending, StatusScheduled, StatusSending).On(EventExpire).To(StatusExpired).
	From(StatusPending, StatusScheduled).On(EventReschedule).To(StatusScheduled).
	From(StatusPending, StatusScheduled).On(EventRelease).To(StatusPending).
	Terminal(StatusSent, StatusFailed, StatusCancelled, StatusExpired).
	MustBuild()

// Transition fires ev against n.Status and, on success, stores the new status in n.
func Transition(ctx context.Context, n *Notification, ev Event) error {
	next, err := Lifecycle.Fire(ctx, n.Status, ev, n)
	if err != nil {
		return err
	}
	n.Status = next
	return nil
}
