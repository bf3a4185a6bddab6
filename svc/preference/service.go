package preference

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/validator"
)

// Service reads and writes user preferences.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to stamp updates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a preference Service over store.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("preference: store cannot be nil")
	}
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored preferences or nil when the user has none, which
// the resolver functions treat as "everything allowed".
func (s *Service) Get(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert validates and saves p.
func (s *Service) Upsert(ctx context.Context, p Preferences) (*Preferences, error) {
	p.WebhookURL = strings.TrimSpace(p.WebhookURL)
	if err := Validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.store.Upsert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "preferences saved",
		logger.Component("preference"),
		logger.UserID(p.UserID),
	)
	return &p, nil
}

// Reset deletes stored preferences so defaults apply again.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Validation("user_id", "cannot be empty")
	}
	return s.store.Delete(ctx, userID)
}

// Validate checks the stored-preferences invariants: quiet hours are set as a
// pair of valid HH:MM values, the webhook URL and time zone parse, and digest
// settings are complete when enabled.
func Validate(p Preferences) error {
	quiet := p.QuietHoursStart != "" || p.QuietHoursEnd != ""

	rules := []validator.Rule{
		validator.RequiredString("user_id", p.UserID),
		validator.When(quiet, validator.ValidTimeOfDay("quiet_hours_start", p.QuietHoursStart)),
		validator.When(quiet, validator.ValidTimeOfDay("quiet_hours_end", p.QuietHoursEnd)),
		validator.When(p.Timezone != "", validator.ValidTimezone("timezone", p.Timezone)),
		validator.When(p.WebhookURL != "", validator.ValidURL("webhook_url", p.WebhookURL)),
		validator.When(p.Digest.Enabled, validator.OneOf("digest.frequency", p.Digest.Frequency, DigestDaily, DigestWeekly)),
		validator.When(p.Digest.Enabled && p.Digest.Time != "", validator.ValidTimeOfDay("digest.time", p.Digest.Time)),
	}
	for category := range p.Categories {
		rules = append(rules, validator.RequiredString("categories", strings.TrimSpace(category)))
	}
	return apperr.FromRules(validator.Apply(rules...))
}
