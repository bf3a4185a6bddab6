package bulk

import "errors"

var (
	ErrCreatorNil = errors.New("bulk: notification creator cannot be nil")
	ErrAborted    = errors.New("bulk: aborted before every recipient was processed")
)
