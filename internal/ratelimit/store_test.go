package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	clock := &stepClock{t: base}
	store := NewMemoryStore()
	store.now = clock.now
	ctx := context.Background()

	for i := range 3 {
		res, err := store.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		clock.advance(10 * time.Second)
	}

	res, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, base.Add(time.Minute), res.ResetAt)
	assert.Equal(t, 30, res.RetryAfter(clock.now()))

	other, err := store.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are counted separately")

	clock.advance(31 * time.Second)
	res, err = store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "oldest request left the window")
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryStoreEvictsIdleKeys(t *testing.T) {
	clock := &stepClock{t: base}
	store := NewMemoryStore()
	store.now = clock.now
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := store.Allow(ctx, "login:"+ip, 5, time.Minute)
		require.NoError(t, err)
	}
	assert.Len(t, store.windows, 3)

	clock.advance(30 * time.Second)
	_, err := store.Allow(ctx, "login:10.0.0.1", 5, time.Minute)
	require.NoError(t, err)
	assert.Len(t, store.windows, 3, "no sweep before the interval")

	clock.advance(sweepEvery + time.Second)
	_, err = store.Allow(ctx, "flow:10.0.0.9", 5, time.Minute)
	require.NoError(t, err)
	assert.Len(t, store.windows, 1, "idle keys are dropped")
	assert.Contains(t, store.windows, "flow:10.0.0.9")
}

func TestMemoryStoreZeroLimitRefuses(t *testing.T) {
	store := NewMemoryStore()
	store.now = func() time.Time { return base }

	res, err := store.Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, base.Add(time.Minute), res.ResetAt)
}

func TestRetryAfterNeverBelowOneSecond(t *testing.T) {
	res := Result{ResetAt: base}
	assert.Equal(t, 1, res.RetryAfter(base.Add(time.Second)))
}

func TestRedisStoreSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &stepClock{t: base}
	store := NewRedisStore(client, "ratelimit:")
	store.now = clock.now
	ctx := context.Background()

	for i := range 2 {
		res, err := store.Allow(ctx, "login:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
		clock.advance(20 * time.Second)
	}

	res, err := store.Allow(ctx, "login:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, base.Add(time.Minute), res.ResetAt)
	assert.True(t, mr.Exists("ratelimit:login:10.0.0.1"))

	clock.advance(21 * time.Second)
	res, err = store.Allow(ctx, "login:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreReportsConnectionErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisStore(client, "ratelimit:").Allow(context.Background(), "k", 1, time.Minute)
	require.Error(t, err)
}
