package analytics

import (
	"context"
	"sync"
)

// Store appends events and counts them per type.
type Store interface {
	Append(ctx context.Context, e Event) error
	Count(ctx context.Context, q Query) (Counts, error)
}

// MemoryStore keeps events in a slice.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) Count(_ context.Context, q Query) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(Counts)
	for _, e := range s.events {
		if q.Match(e) {
			counts[e.Type]++
		}
	}
	return counts, nil
}

// Events returns every event for notificationID, or all events when it is empty.
func (s *MemoryStore) Events(notificationID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if notificationID == "" || e.NotificationID == notificationID {
			out = append(out, e)
		}
	}
	return out
}
