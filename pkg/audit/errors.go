package audit

import "errors"

var ErrEventValidation = errors.New("audit: event validation failed")
