// file: service/rate_limiter.go

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICounterClient is the subset of the Redis client the limiter needs.
type ICounterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter is a fixed-window attempt counter stored in Redis.
type RateLimiter struct {
	client      ICounterClient
	prefix      string
	maxAttempts int
	window      time.Duration
}

func NewRateLimiter(client ICounterClient, prefix string, maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:      client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow records one attempt for key. When the budget is spent it returns
// false and the time until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter increment failed: %w", err)
	}
	// The first hit opens the window.
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limiter expire failed: %w", err)
		}
	}

	if count <= int64(l.maxAttempts) {
		return true, 0, nil
	}

	retryAfter, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || retryAfter < 0 {
		// A failed Expire on the first hit leaves the counter without a TTL.
		// Re-arm it so the key cannot block forever.
		if err == nil {
			if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
				return false, 0, fmt.Errorf("rate limiter expire failed: %w", err)
			}
		}
		retryAfter = l.window
	}
	return false, retryAfter, nil
}
