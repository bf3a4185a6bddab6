package pgstore

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/svc/preference"
)

// PreferenceStore implements preference.Store on PostgreSQL. Channel flags
// are nullable columns so an unset flag keeps its default-allow meaning.
type PreferenceStore struct {
	db Querier
}

// NewPreferenceStore creates a preference store over db.
func NewPreferenceStore(db Querier) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the stored preferences of userID.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*preference.Preferences, error) {
	var (
		p         preference.Preferences
		frequency string
	)
	err := s.db.QueryRow(ctx, `
		SELECT user_id, email, sms, push, in_app, webhook, webhook_url,
			quiet_hours_start, quiet_hours_end, timezone, categories,
			digest_enabled, digest_frequency, digest_time, updated_at
		FROM notification_preferences WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.Email, &p.SMS, &p.Push, &p.InApp, &p.Webhook, &p.WebhookURL,
		&p.QuietHoursStart, &p.QuietHoursEnd, &p.Timezone, &p.Categories,
		&p.Digest.Enabled, &frequency, &p.Digest.Time, &p.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, preference.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	p.Digest.Frequency = preference.Frequency(frequency)
	return &p, nil
}

func (s *PreferenceStore) Upsert(ctx context.Context, p preference.Preferences) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences (
			user_id, email, sms, push, in_app, webhook, webhook_url,
			quiet_hours_start, quiet_hours_end, timezone, categories,
			digest_enabled, digest_frequency, digest_time, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			sms = EXCLUDED.sms,
			push = EXCLUDED.push,
			in_app = EXCLUDED.in_app,
			webhook = EXCLUDED.webhook,
			webhook_url = EXCLUDED.webhook_url,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			categories = EXCLUDED.categories,
			digest_enabled = EXCLUDED.digest_enabled,
			digest_frequency = EXCLUDED.digest_frequency,
			digest_time = EXCLUDED.digest_time,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Email, p.SMS, p.Push, p.InApp, p.Webhook, p.WebhookURL,
		p.QuietHoursStart, p.QuietHoursEnd, p.Timezone, p.Categories,
		p.Digest.Enabled, string(p.Digest.Frequency), p.Digest.Time, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

func (s *PreferenceStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM notification_preferences WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}
