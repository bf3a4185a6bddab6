// Package prefcache caches user preferences in Redis in front of another
// preference.Store. The cache is best-effort: Redis failures are logged and
// the request falls through to the wrapped store.
package prefcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/preference"
)

// Client is the subset of redis.UniversalClient the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// missing marks a user without stored preferences.
const missing = "null"

// Store is a read-through preference.Store.
type Store struct {
	next   preference.Store
	client Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

type Option func(*Store)

// WithTTL sets how long entries live. Default 10 minutes.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithPrefix sets the key prefix. Default "notify:prefs:".
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// WithLogger sets the logger for the cache.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps next with a Redis read-through cache.
func New(next preference.Store, client Client, opts ...Option) *Store {
	s := &Store{
		next:   next,
		client: client,
		ttl:    10 * time.Minute,
		prefix: "notify:prefs:",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get serves preferences from Redis, loading and caching them from the wrapped store on a miss.
func (s *Store) Get(ctx context.Context, userID string) (*preference.Preferences, error) {
	key := s.prefix + userID

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(raw) == missing {
			return nil, preference.ErrPreferencesNotFound
		}
		var p preference.Preferences
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		s.warn(ctx, "dropping undecodable cache entry", userID, nil)
		s.invalidate(ctx, userID)
	case !errors.Is(err, redis.Nil):
		s.warn(ctx, "preference cache read failed", userID, err)
	}

	p, err := s.next.Get(ctx, userID)
	if errors.Is(err, preference.ErrPreferencesNotFound) {
		s.put(ctx, key, []byte(missing), userID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		s.put(ctx, key, raw, userID)
	}
	return p, nil
}

// Upsert writes through and drops the cached entry.
func (s *Store) Upsert(ctx context.Context, p preference.Preferences) error {
	if err := s.next.Upsert(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p.UserID)
	return nil
}

// Delete removes the preferences and drops the cached entry.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.next.Delete(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Store) put(ctx context.Context, key string, val []byte, userID string) {
	if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		s.warn(ctx, "preference cache write failed", userID, err)
	}
}

func (s *Store) invalidate(ctx context.Context, userID string) {
	if err := s.client.Del(ctx, s.prefix+userID).Err(); err != nil {
		s.warn(ctx, "preference cache invalidation failed", userID, err)
	}
}

func (s *Store) warn(ctx context.Context, msg, userID string, err error) {
	s.logger.LogAttrs(ctx, slog.LevelWarn, msg,
		logger.Component("prefcache"),
		logger.UserID(userID),
		logger.Error(err),
	)
}
