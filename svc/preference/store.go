package preference

import (
	"context"
	"maps"
	"sync"
)

// Store persists preferences. Get returns ErrPreferencesNotFound when the
// user has never saved any.
type Store interface {
	Get(ctx context.Context, userID string) (*Preferences, error)
	Upsert(ctx context.Context, p Preferences) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// NewMemoryStore creates an empty in-memory preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]Preferences)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	p.Categories = maps.Clone(p.Categories)
	return &p, nil
}

func (s *MemoryStore) Upsert(_ context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Categories = maps.Clone(p.Categories)
	s.prefs[p.UserID] = p
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.prefs, userID)
	return nil
}
