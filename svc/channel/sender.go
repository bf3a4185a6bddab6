package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrymomot/libraryops/svc/notification"
)

// Sender delivers one payload over one channel and returns the provider's
// message id when it has one. Failures are *DeliveryError values.
type Sender interface {
	Channel() notification.Channel
	Send(ctx context.Context, p Payload) (string, error)
}

// Registry routes payloads to the adapter registered for their channel.
type Registry struct {
	mu      sync.RWMutex
	senders map[notification.Channel]Sender
}

// NewRegistry creates a Registry holding senders.
func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[notification.Channel]Sender, len(senders))}
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any adapter already registered for its channel.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Get returns the sender registered for ch.
func (r *Registry) Get(ch notification.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[ch]
	return s, ok
}

// Channels returns the channels with a registered adapter.
func (r *Registry) Channels() []notification.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Channel, 0, len(r.senders))
	for _, ch := range notification.Channels {
		if _, ok := r.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Deliver sends p with the matching adapter. An unregistered channel is a
// permanent failure. Adapter errors that are not DeliveryErrors are treated
// as transient.
func (r *Registry) Deliver(ctx context.Context, p Payload) (string, error) {
	s, ok := r.Get(p.Channel())
	if !ok {
		return "", Permanent(p.Channel(), fmt.Errorf("%w: %s", ErrChannelNotRegistered, p.Channel()))
	}
	id, err := s.Send(ctx, p)
	if err != nil {
		return "", asDeliveryError(p.Channel(), err)
	}
	return id, nil
}

func asDeliveryError(ch notification.Channel, err error) error {
	var de *DeliveryError
	if errors.As(err, &de) {
		return err
	}
	return Transient(ch, err)
}
