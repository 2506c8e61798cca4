// Package ratelimit throttles slip intake per customer identity. A sliding
// window over request timestamps avoids the burst-at-boundary problem of
// fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Limiter gates an action keyed by caller identity.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Result, error)
}

type slidingWindow struct {
	timestamps []time.Time
}

func (sw *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// InMemoryLimiter implements Limiter with per-key sliding windows. Suitable
// for single-instance deployments; distributed setups use the Redis limiter.
type InMemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*slidingWindow
}

func NewInMemoryLimiter(limit int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*slidingWindow),
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.buckets[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.buckets[key] = sw
	}
	sw.cleanup(now.Add(-l.window))

	if len(sw.timestamps) >= l.limit {
		return Result{
			Allowed: false,
			RetryAt: sw.timestamps[0].Add(l.window),
		}, nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.limit - len(sw.timestamps),
		RetryAt:   sw.timestamps[0].Add(l.window),
	}, nil
}

// Reset clears the window for a key. Test helper.
func (l *InMemoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
