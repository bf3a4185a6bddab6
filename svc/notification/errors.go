package notification

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateID          = errors.New("notification id already exists")
	ErrStaleStatus          = errors.New("notification status changed concurrently")
	ErrInvalidTransition    = errors.New("notification status does not allow this operation")
	ErrChannelDisabled      = errors.New("channel disabled by user preferences")
	ErrCategoryDisabled     = errors.New("category disabled by user preferences")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrScheduleInPast       = errors.New("scheduled time must be in the future")
)
