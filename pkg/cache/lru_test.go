package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/cache"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := cache.NewLRUCache(2, cache.WithEvictCallback(func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_PutReplaces(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, string](2)
	c.Put("k", "v1")
	c.Put("k", "v2")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewLRUCache(4,
		cache.WithTTL[string, int](time.Minute),
		cache.WithClock[string, int](func() time.Time { return now }),
	)

	c.Put("a", 1)
	now = now.Add(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](4)
	calls := 0
	load := func() (int, error) {
		calls++
		return 7, nil
	}

	v, err := c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = c.GetOrLoad("y", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("y")
	assert.False(t, ok)
}

func TestLRUCache_RemoveAndClear(t *testing.T) {
	t.Parallel()

	cleared := 0
	c := cache.NewLRUCache(3, cache.WithEvictCallback(func(string, int) { cleared++ }))
	c.Put("a", 1)
	c.Put("b", 2)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, 1, cleared)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, 2, cleared)
}

func TestNewLRUCache_PanicsOnZeroCapacity(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
}
