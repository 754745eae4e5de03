package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

var _ extraction.Cache = (*InMemoryCache)(nil)
var _ extraction.Cache = (*RedisCache)(nil)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewInMemoryCache(time.Minute, WithClock(func() time.Time { return now }))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", casefile.Fields{"name": "Omar"}))

	t.Run("returns a copy", func(t *testing.T) {
		got, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		got["name"] = "changed"

		again, _, _ := c.Get(ctx, "k")
		assert.Equal(t, "Omar", again["name"])
	})

	t.Run("expires after ttl", func(t *testing.T) {
		now = now.Add(time.Minute)
		_, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("nil fields are ignored", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "nil", nil))
		assert.Equal(t, 0, c.Len())
	})
}
