package pgstore

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Directory implements notification.UserDirectory over the library_users table.
type Directory struct {
	db Querier
}

// NewDirectory creates a user directory backed by the library_users table.
func NewDirectory(db Querier) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (notification.Recipient, error) {
	var r notification.Recipient
	err := d.db.QueryRow(ctx, `
		SELECT id, name, email, phone, device_tokens, locale
		FROM library_users WHERE id = $1`,
		userID,
	).Scan(&r.UserID, &r.Name, &r.Email, &r.Phone, &r.DeviceTokens, &r.Locale)
	if pg.IsNotFoundError(err) {
		return notification.Recipient{}, notification.ErrUserNotFound
	}
	if err != nil {
		return notification.Recipient{}, fmt.Errorf("lookup user: %w", err)
	}
	return r, nil
}
