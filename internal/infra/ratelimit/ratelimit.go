// Package ratelimit provides rolling-window request limiters keyed by an
// arbitrary string (usually a user ID).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter admits at most limit requests per key in any window-long span.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// ─── Memory ─────────────────────────────────────────────────────────────────

// Memory is an in-process rolling-window log. It is exact but not shared
// between instances.
type Memory struct {
	mu   sync.Mutex
	hits  map[string][]time.Time
	now   func() time.Time
	calls int
}

// pruneEvery is how many Allow calls pass between idle-key sweeps.
const pruneEvery = 1024

// NewMemory creates an in-process limiter.
func NewMemory() *Memory {
	return &Memory{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow records a hit for key if fewer than limit hits fall in the window.
func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)
	if m.calls++; m.calls%pruneEvery == 0 {
		m.prune(cutoff)
	}
	log := m.hits[key]
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	if len(log) >= limit {
		m.hits[key] = log
		d := Decision{Limit: limit}
		if len(log) > 0 {
			d.RetryAfter = log[0].Add(window).Sub(now)
		}
		return d, nil
	}

	log = append(log, now)
	m.hits[key] = log
	return Decision{Allowed: true, Limit: limit, Remaining: limit - len(log)}, nil
}

// prune drops keys with no hit inside the window. Called with mu held.
func (m *Memory) prune(cutoff time.Time) {
	for k, log := range m.hits {
		if len(log) == 0 || !log[len(log)-1].After(cutoff) {
			delete(m.hits, k)
		}
	}
}
