// service/rate_limiter_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxAttempts int, window time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client, "auth", maxAttempts, window), mr
}

// flakyExpireClient fails the first Expire call and delegates everything
// else to a real client.
type flakyExpireClient struct {
	*redis.Client
	failed bool
}

func (c *flakyExpireClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if !c.failed {
		c.failed = true
		return redis.NewBoolResult(false, errors.New("connection reset"))
	}
	return c.Client.Expire(ctx, key, expiration)
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks after budget is spent", func(t *testing.T) {
		limiter, mr := newTestLimiter(t, 3, 15*time.Minute)

		for i := 0; i < 3; i++ {
			ok, _, err := limiter.Allow(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, retryAfter, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Greater(t, retryAfter, time.Duration(0))
		assert.LessOrEqual(t, retryAfter, 15*time.Minute)

		assert.True(t, mr.Exists("ratelimit:auth:10.0.0.1"))
		assert.Equal(t, 15*time.Minute, mr.TTL("ratelimit:auth:10.0.0.1"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 1, time.Minute)

		ok, _, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _, err = limiter.Allow(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("window resets", func(t *testing.T) {
		limiter, mr := newTestLimiter(t, 1, time.Minute)

		ok, _, _ := limiter.Allow(ctx, "10.0.0.1")
		assert.True(t, ok)
		ok, _, _ = limiter.Allow(ctx, "10.0.0.1")
		assert.False(t, ok)

		mr.FastForward(time.Minute + time.Second)

		ok, _, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("redis down", func(t *testing.T) {
		limiter, mr := newTestLimiter(t, 1, time.Minute)
		mr.Close()

		ok, _, err := limiter.Allow(ctx, "10.0.0.1")

		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("lost expire does not block forever", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		limiter := NewRateLimiter(&flakyExpireClient{Client: client}, "auth", 2, time.Minute)
		key := "ratelimit:auth:10.0.0.1"

		_, _, err := limiter.Allow(ctx, "10.0.0.1")
		require.Error(t, err)
		assert.Equal(t, time.Duration(0), mr.TTL(key))

		ok, _, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, retryAfter, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, time.Minute, retryAfter)
		assert.Equal(t, time.Minute, mr.TTL(key))

		mr.FastForward(time.Minute + time.Second)

		ok, _, err = limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
