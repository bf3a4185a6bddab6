package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// MemoryStorage keeps events in memory. Useful for tests and single-node runs.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage creates an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns stored events, filtered by action when action is not empty.
func (s *MemoryStorage) Events(action string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if action == "" {
		return slices.Clone(s.events)
	}
	var out []Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// LogStorage writes each event as a structured log record at Info level.
type LogStorage struct {
	log *slog.Logger
}

// NewLogStorage creates a storage that writes every event to log.
func NewLogStorage(log *slog.Logger) *LogStorage {
	return &LogStorage{log: log}
}

func (s *LogStorage) Store(ctx context.Context, e Event) error {
	attrs := []slog.Attr{
		slog.String("audit_id", e.ID),
		slog.String("action", e.Action),
		slog.String("result", string(e.Result)),
	}
	if e.Actor != "" {
		attrs = append(attrs, slog.String("actor", e.Actor))
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource), slog.String("resource_id", e.ResourceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	if len(e.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", e.Metadata))
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
