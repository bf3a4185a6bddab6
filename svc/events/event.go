package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/validator"
)

// Event is a domain event published by the library system.
type Event struct {
	Type          string         `json:"type"`
	UserID        string         `json:"userId"`
	Data          map[string]any `json:"data,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// Decode parses and validates a JSON event body.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, apperr.Validationf(ErrInvalidEvent, "body", "malformed JSON: %v", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Validate checks that the event names a type and a user.
func (e Event) Validate() error {
	err := validator.Apply(
		validator.RequiredString("type", e.Type),
		validator.RequiredString("userId", e.UserID),
	)
	if err != nil {
		verr := apperr.NewValidationError(fmt.Errorf("%w: %w", ErrInvalidEvent, err))
		for _, v := range validator.ExtractValidationErrors(err) {
			verr.Add(v.Field, v.Message)
		}
		return verr
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID stores id in ctx so log records carry it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}

// CorrelationExtractor adds the correlation id to log records; pass it to
// logger.WithContextExtractors.
func CorrelationExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := CorrelationID(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return logger.CorrelationID(id), true
	}
}
