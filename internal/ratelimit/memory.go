package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count int
	reset time.Time
}

// Memory is a synchronized in-process limiter with lazy expiry.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Check implements Limiter.
func (m *Memory) Check(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !e.reset.After(now) {
		e = &entry{count: 1, reset: now.Add(window)}
		m.entries[key] = e
		return Result{Allowed: true, Remaining: limit - 1, Reset: e.reset}, nil
	}

	if e.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: e.reset}, nil
	}

	e.count++
	return Result{Allowed: true, Remaining: limit - e.count, Reset: e.reset}, nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (m *Memory) Cleanup() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if !e.reset.After(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup on a ticker until ctx is canceled.
func (m *Memory) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
