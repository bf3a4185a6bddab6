package analytics

import "errors"

var ErrInvalidEvent = errors.New("invalid analytics event")
