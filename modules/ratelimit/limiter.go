// Package ratelimit provides a Redis-based fixed-window rate limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces rate counters in Redis: rate:<addr>:<minuteBucket>.
const keyPrefix = "rate:"

// Limiter counts inbound messages per source address in fixed one-minute
// wall-clock buckets. The count is incremented atomically in Redis, so
// concurrent frames from the same address are counted correctly across all
// server instances.
type Limiter struct {
	client *redis.Client
	limit  int
}

// NewLimiter creates a limiter admitting up to limit messages per minute.
func NewLimiter(client *redis.Client, limit int) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
	}
}

// Allow records one message from addr and reports whether it is admitted.
// The bucket key is derived from the current minute (truncated, not
// sliding); the first increment of a bucket sets its 60s expiry. The limit
// is inclusive: count == limit is admitted, count == limit+1 is the first
// rejection.
func (l *Limiter) Allow(ctx context.Context, addr string) (bool, error) {
	bucket := time.Now().Unix() / 60
	key := fmt.Sprintf("%s%s:%d", keyPrefix, addr, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit increment error: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire error: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Limit returns the configured per-minute limit.
func (l *Limiter) Limit() int {
	return l.limit
}
