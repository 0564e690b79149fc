package cache

import (
	"context"
	"testing"
	"time"

	"example.com/eventwave/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, "eventwave")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, PreferenceKey("search_radius"), 12.5, 0))
	assert.True(t, mr.Exists("eventwave:pref:search_radius"))

	var radius float64
	require.NoError(t, c.Get(ctx, PreferenceKey("search_radius"), &radius))
	assert.Equal(t, 12.5, radius)
}

func TestRedisCacheMissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	var v string
	err := c.Get(context.Background(), "nope", &v)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisCacheDeleteAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "a", "x", 0))
	require.NoError(t, c.Set(ctx, "b", "y", time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "missing"))
	assert.False(t, mr.Exists("eventwave:a"))

	mr.FastForward(2 * time.Minute)
	var v string
	assert.ErrorIs(t, c.Get(ctx, "b", &v), ErrKeyNotFound)
}

func TestDisabledCache(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	var v string
	assert.ErrorIs(t, c.Get(context.Background(), "a", &v), ErrDisabled)
	assert.NoError(t, c.Close())
}
