package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/broadcast"
)

func TestMemoryBroadcaster_Delivers(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx := context.Background()
	s1 := b.Subscribe(ctx)
	s2 := b.Subscribe(ctx)
	assert.Equal(t, 2, b.Subscribers())

	n, err := b.Broadcast(ctx, broadcast.Message[string]{Data: "due tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, s := range []broadcast.Subscriber[string]{s1, s2} {
		select {
		case msg := <-s.Receive():
			assert.Equal(t, "due tomorrow", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("message not received")
		}
	}
}

func TestMemoryBroadcaster_DropsForFullBuffer(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx := context.Background()
	b.Subscribe(ctx)

	n, err := b.Broadcast(ctx, broadcast.Message[int]{Data: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = b.Broadcast(ctx, broadcast.Message[int]{Data: 2})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryBroadcaster_UnsubscribesOnContextCancel(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-sub.Receive()
	assert.False(t, open)
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	sub := b.Subscribe(context.Background())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, open := <-sub.Receive()
	assert.False(t, open)

	_, err := b.Broadcast(context.Background(), broadcast.Message[int]{Data: 1})
	assert.ErrorIs(t, err, broadcast.ErrClosed)

	late := b.Subscribe(context.Background())
	_, open = <-late.Receive()
	assert.False(t, open)
}
