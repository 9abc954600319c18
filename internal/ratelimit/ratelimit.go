// Package ratelimit provides per-key fixed-window counting used to
// throttle verification code requests. The in-memory implementation
// assumes a single-process deployment; the Redis one shares counters
// across instances. Callers never see the difference.
package ratelimit

import (
	"context"
	"time"
)

// Result describes one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter counts events per key within a fixed window.
type Limiter interface {
	// Check records one attempt for key and reports whether it is
	// within limit for the current window.
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Key builds a namespaced limiter key.
func Key(kind, identifier string) string {
	return kind + ":" + identifier
}
