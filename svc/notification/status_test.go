package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/statemachine"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

func TestLifecycle_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from notification.Status
		ev   notification.Event
		want notification.Status
	}{
		{notification.StatusPending, notification.EventClaim, notification.StatusSending},
		{notification.StatusScheduled, notification.EventClaim, notification.StatusSending},
		{notification.StatusSending, notification.EventDeliver, notification.StatusSent},
		{notification.StatusSending, notification.EventFail, notification.StatusFailed},
		{notification.StatusPending, notification.EventCancel, notification.StatusCancelled},
		{notification.StatusScheduled, notification.EventCancel, notification.StatusCancelled},
		{notification.StatusSending, notification.EventExpire, notification.StatusExpired},
		{notification.StatusPending, notification.EventReschedule, notification.StatusScheduled},
		{notification.StatusScheduled, notification.EventRelease, notification.StatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			t.Parallel()
			n := &notification.Notification{Status: tt.from}
			require.NoError(t, notification.Transition(context.Background(), n, tt.ev))
			assert.Equal(t, tt.want, n.Status)
		})
	}
}

func TestLifecycle_RetryGuard(t *testing.T) {
	t.Parallel()

	n := &notification.Notification{Status: notification.StatusSending, MaxRetries: 3, RetryCount: 2}
	require.NoError(t, notification.Transition(context.Background(), n, notification.EventRetry))
	assert.Equal(t, notification.StatusScheduled, n.Status)

	exhausted := &notification.Notification{Status: notification.StatusSending, MaxRetries: 3, RetryCount: 3}
	err := notification.Transition(context.Background(), exhausted, notification.EventRetry)
	var rejected *statemachine.ErrTransitionRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, notification.StatusSending, exhausted.Status)
}

func TestLifecycle_TerminalStates(t *testing.T) {
	t.Parallel()

	for _, s := range []notification.Status{
		notification.StatusSent, notification.StatusFailed,
		notification.StatusCancelled, notification.StatusExpired,
	} {
		assert.True(t, s.IsTerminal(), s)
		for _, ev := range []notification.Event{notification.EventClaim, notification.EventCancel, notification.EventExpire} {
			n := &notification.Notification{Status: s}
			err := notification.Transition(context.Background(), n, ev)
			assert.True(t, statemachine.IsTransitionError(err), "%s/%s", s, ev)
			assert.Equal(t, s, n.Status)
		}
	}

	assert.False(t, notification.StatusSending.IsTerminal())

	n := &notification.Notification{Status: notification.StatusSending}
	assert.Error(t, notification.Transition(context.Background(), n, notification.EventCancel), "in-flight rows cannot be cancelled")
}

func TestPriority(t *testing.T) {
	t.Parallel()

	assert.Less(t, notification.PriorityLow, notification.PriorityMedium)
	assert.Less(t, notification.PriorityUrgent, notification.PriorityCritical)

	p, err := notification.ParsePriority("urgent")
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityUrgent, p)

	_, err = notification.ParsePriority("whenever")
	assert.ErrorIs(t, err, notification.ErrInvalidPriority)

	var decoded notification.Priority
	require.NoError(t, decoded.UnmarshalText([]byte("HIGH")))
	assert.Equal(t, "HIGH", decoded.String())
}
