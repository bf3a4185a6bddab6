package dispatch

import "errors"

var (
	ErrStoreNil          = errors.New("dispatch: store cannot be nil")
	ErrDelivererNil      = errors.New("dispatch: deliverer cannot be nil")
	ErrDirectoryNil      = errors.New("dispatch: user directory cannot be nil")
	ErrAlreadyStarted    = errors.New("dispatch: already started")
	ErrNotStarted        = errors.New("dispatch: not started")
	ErrInvalidSchedule   = errors.New("dispatch: invalid schedule")
	ErrNoScheduleDefined = errors.New("dispatch: schedule cannot be nil")
)
