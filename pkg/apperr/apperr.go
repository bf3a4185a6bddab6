// Package apperr defines the error taxonomy shared by the notification services.
//
// Callers branch on the kind of failure with IsValidation, IsNotFound and
// IsConflict. Sentinel errors from individual packages are wrapped into these
// types, so errors.Is against the sentinel keeps working.
package apperr

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dmitrymomot/libraryops/pkg/validator"
)

// ValidationError maps field names to messages.
// It's based on url.Values to reuse its multi-value helpers.
type ValidationError struct {
	Fields url.Values
	cause  error
}

// NewValidationError creates an empty validation error wrapping cause (may be nil).
func NewValidationError(cause error) *ValidationError {
	return &ValidationError{Fields: make(url.Values), cause: cause}
}

// Validation is a shorthand for a single-field validation failure.
func Validation(field, message string) *ValidationError {
	e := NewValidationError(nil)
	e.Add(field, message)
	return e
}

// Validationf wraps a sentinel cause with a single-field message.
func Validationf(cause error, field, format string, args ...any) *ValidationError {
	e := NewValidationError(cause)
	e.Add(field, fmt.Sprintf(format, args...))
	return e
}

// FromRules converts the output of validator.Apply. It returns nil when err is nil
// and passes through errors that are not validation failures.
func FromRules(err error) error {
	if err == nil {
		return nil
	}
	ve := validator.ExtractValidationErrors(err)
	if ve == nil {
		return err
	}
	out := NewValidationError(err)
	for _, v := range ve {
		out.Add(v.Field, v.Message)
	}
	return out
}

// Add records message for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields.Add(field, message)
}

// Get returns the first message for field.
func (e *ValidationError) Get(field string) string {
	return e.Fields.Get(field)
}

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.cause != nil {
			return "validation error: " + e.cause.Error()
		}
		return "validation error"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Resource string
	ID       string
	cause    error
}

// NotFound builds a NotFoundError wrapping the package sentinel cause.
func NotFound(cause error, resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, cause: cause}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.cause }

// ConflictError reports an operation that clashes with existing state,
// such as a duplicate unique name or a protected record.
type ConflictError struct {
	Resource string
	Reason   string
	cause    error
}

// Conflict builds a ConflictError wrapping the package sentinel cause.
func Conflict(cause error, resource, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason, cause: cause}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.cause }

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a *ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
