package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a limiter backed by shared Redis counters, for deployments
// running more than one instance.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "ratelimit:"}
}

// Check implements Limiter. The first increment in a window sets the
// key's TTL; the count and the expiry travel together, so concurrent
// checks across instances agree on the window.
func (r *Redis) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	full := r.prefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	ttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(incr.Val())
	reset := time.Now().Add(ttl.Val())

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= limit, Remaining: remaining, Reset: reset}, nil
}
