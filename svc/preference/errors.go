package preference

import "errors"

var ErrPreferencesNotFound = errors.New("preferences not found")
