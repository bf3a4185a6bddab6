package notification

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Notification
}

// NewMemoryStore creates an empty in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Notification)}
}

func (s *MemoryStore) Create(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[n.ID]; ok {
		return ErrDuplicateID
	}
	s.rows[n.ID] = cloneNotification(n)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.rows[id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	return cloneNotification(n), nil
}

func (s *MemoryStore) Update(_ context.Context, n Notification, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[n.ID]
	if !ok {
		return ErrNotificationNotFound
	}
	if cur.Status != expected {
		return ErrStaleStatus
	}
	s.rows[n.ID] = cloneNotification(n)
	return nil
}

func (s *MemoryStore) QueryDue(_ context.Context, now time.Time, limit int) ([]Notification, error) {
	return s.query(limit, func(n Notification) bool {
		return slices.Contains(DueStatuses, n.Status) && n.ScheduledFor != nil && !n.ScheduledFor.After(now)
	}, func(a, b Notification) int {
		return a.ScheduledFor.Compare(*b.ScheduledFor)
	}), nil
}

func (s *MemoryStore) QueryExpirable(_ context.Context, now time.Time, limit int) ([]Notification, error) {
	return s.query(limit, func(n Notification) bool {
		return slices.Contains(NonTerminalStatuses, n.Status) && n.IsExpired(now)
	}, func(a, b Notification) int {
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	}), nil
}

func (s *MemoryStore) QueryByUser(_ context.Context, userID string, f Filter) ([]Notification, error) {
	out := s.query(0, func(n Notification) bool {
		switch {
		case n.UserID != userID:
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, n.Status):
			return false
		case f.Channel != "" && n.Channel != f.Channel:
			return false
		case f.Category != "" && n.Category != f.Category:
			return false
		case f.UnreadOnly && n.IsRead():
			return false
		}
		return true
	}, func(a, b Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.rows {
		if n.UserID == userID && !n.IsRead() && n.Status == StatusSent {
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *MemoryStore) query(limit int, keep func(Notification) bool, order func(a, b Notification) int) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.rows {
		if keep(n) {
			out = append(out, cloneNotification(n))
		}
	}
	slices.SortStableFunc(out, func(a, b Notification) int {
		return cmp.Or(order(a, b), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cloneNotification(n Notification) Notification {
	n.Data = maps.Clone(n.Data)
	n.ScheduledFor = cloneTime(n.ScheduledFor)
	n.ExpiresAt = cloneTime(n.ExpiresAt)
	n.SentAt = cloneTime(n.SentAt)
	n.ReadAt = cloneTime(n.ReadAt)
	return n
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return ptr(*t)
}
