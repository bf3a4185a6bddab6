package validator

import (
	"fmt"
	"time"
)

// DateAfter checks value is strictly after ref.
// Callers pass their own clock reading as ref to keep the rule deterministic.
func DateAfter(field string, value, ref time.Time) Rule {
	return Rule{
		Check: func() bool {
			return value.After(ref)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be after %s", ref.Format(time.RFC3339)),
			TranslationKey: "validation.date_after",
		},
	}
}

// DateNotAfter checks value is at or before limit.
func DateNotAfter(field string, value, limit time.Time) Rule {
	return Rule{
		Check: func() bool {
			return !value.After(limit)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must not be after %s", limit.Format(time.RFC3339)),
			TranslationKey: "validation.date_not_after",
		},
	}
}
