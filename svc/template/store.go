package template

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Store persists templates. Implementations return ErrTemplateNotFound for
// unknown ids or names and ErrDuplicateName when a name is taken.
type Store interface {
	Create(ctx context.Context, t Template) error
	Update(ctx context.Context, t Template) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Template, error)
	GetByName(ctx context.Context, name string) (Template, error)
	List(ctx context.Context, filter ListFilter) ([]Template, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Template
	byName map[string]string
}

// NewMemoryStore creates an empty in-memory template store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Template),
		byName: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, t Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[t.Name]; ok {
		return ErrDuplicateName
	}
	s.byID[t.ID] = clone(t)
	s.byName[t.Name] = t.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, t Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[t.ID]
	if !ok {
		return ErrTemplateNotFound
	}
	if id, taken := s.byName[t.Name]; taken && id != t.ID {
		return ErrDuplicateName
	}
	delete(s.byName, old.Name)
	s.byID[t.ID] = clone(t)
	s.byName[t.Name] = t.ID
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrTemplateNotFound
	}
	delete(s.byID, id)
	delete(s.byName, t.Name)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) GetByName(_ context.Context, name string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return clone(s.byID[id]), nil
}

// List returns matching templates ordered by name.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, 0, len(s.byID))
	for _, t := range s.byID {
		if filter.match(t) {
			out = append(out, clone(t))
		}
	}
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func clone(t Template) Template {
	t.Variables = slices.Clone(t.Variables)
	return t
}
