package notification

import (
	"context"
	"slices"
	"sync"
)

// Recipient is the contact information a channel adapter needs.
type Recipient struct {
	UserID       string   `json:"user_id"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	DeviceTokens []string `json:"device_tokens,omitempty"`
	Locale       string   `json:"locale,omitempty"`
}

// UserDirectory resolves users owned by the surrounding application.
// Lookup returns ErrUserNotFound for unknown users.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (Recipient, error)
}

// MemoryDirectory is an in-process UserDirectory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]Recipient
}

// NewMemoryDirectory creates a directory holding users.
func NewMemoryDirectory(users ...Recipient) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]Recipient, len(users))}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *MemoryDirectory) Put(r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[r.UserID] = r
}

func (d *MemoryDirectory) Lookup(_ context.Context, userID string) (Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.users[userID]
	if !ok {
		return Recipient{}, ErrUserNotFound
	}
	r.DeviceTokens = slices.Clone(r.DeviceTokens)
	return r, nil
}
