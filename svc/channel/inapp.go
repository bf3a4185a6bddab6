package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/libraryops/pkg/broadcast"
	"github.com/dmitrymomot/libraryops/pkg/cache"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// InApp fans in-app notifications out to live subscribers of each user.
// The notification row itself is the durable copy, so a user without
// subscribers still counts as delivered.
type InApp struct {
	users      *cache.LRUCache[string, *broadcast.MemoryBroadcaster[InAppPayload]]
	bufferSize int
	maxUsers   int
	logger     *slog.Logger
	mu         sync.Mutex
}

type InAppOption func(*InApp)

// WithInAppLogger sets the logger for the InApp adapter.
func WithInAppLogger(l *slog.Logger) InAppOption {
	return func(a *InApp) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxUsers caps the number of per-user broadcasters. The least recently
// used one is closed when the cap is reached. Default is 10,000.
func WithMaxUsers(n int) InAppOption {
	return func(a *InApp) {
		if n > 0 {
			a.maxUsers = n
		}
	}
}

// WithBufferSize sets each subscriber's buffer. Default is 16.
func WithBufferSize(n int) InAppOption {
	return func(a *InApp) {
		if n > 0 {
			a.bufferSize = n
		}
	}
}

// NewInApp creates the IN_APP adapter with one broadcaster per connected user.
func NewInApp(opts ...InAppOption) *InApp {
	a := &InApp{
		bufferSize: 16,
		maxUsers:   10000,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.users = cache.NewLRUCache[string, *broadcast.MemoryBroadcaster[InAppPayload]](a.maxUsers,
		cache.WithEvictCallback(func(userID string, b *broadcast.MemoryBroadcaster[InAppPayload]) {
			if err := b.Close(); err != nil {
				a.logger.LogAttrs(context.Background(), slog.LevelError, "failed to close evicted broadcaster",
					logger.UserID(userID),
					logger.Error(err),
				)
			}
		}),
	)
	return a
}

func (*InApp) Channel() notification.Channel { return notification.ChannelInApp }

func (a *InApp) Send(ctx context.Context, p Payload) (string, error) {
	msg, ok := p.(InAppPayload)
	if !ok {
		return "", Permanent(notification.ChannelInApp, fmt.Errorf("%w: %T", ErrPayloadMismatch, p))
	}

	receivers, err := a.broadcaster(msg.UserID).Broadcast(ctx, broadcast.Message[InAppPayload]{Data: msg})
	if err != nil {
		// ErrClosed here means the broadcaster was evicted between lookup
		// and send; the next attempt gets a fresh one.
		return "", Transient(notification.ChannelInApp, err)
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "in-app notification published",
		logger.NotificationID(msg.NotificationID),
		logger.UserID(msg.UserID),
		logger.Count("receivers", receivers),
	)
	return msg.NotificationID, nil
}

// Subscribe returns a live feed of userID's in-app notifications. It ends
// when ctx is done or the subscriber is closed.
func (a *InApp) Subscribe(ctx context.Context, userID string) broadcast.Subscriber[InAppPayload] {
	return a.broadcaster(userID).Subscribe(ctx)
}

// Close closes every user broadcaster.
func (a *InApp) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users.Clear()
	return nil
}

func (a *InApp) broadcaster(userID string) *broadcast.MemoryBroadcaster[InAppPayload] {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.users.Get(userID)
	if !ok {
		b = broadcast.NewMemoryBroadcaster[InAppPayload](a.bufferSize)
		a.users.Put(userID, b)
	}
	return b
}
