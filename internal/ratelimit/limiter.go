// Package ratelimit is the in-process fallback used when Redis is not configured.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 5 * time.Minute

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per key
type Limiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	keys      map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter refilling requestsPerMinute tokens per minute.
// Buckets unused for longer than idle are dropped.
func New(requestsPerMinute, burst int, idle time.Duration) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burst:     requestsPerMinute + burst,
		idle:      idle,
		keys:      make(map[string]*entry),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether key may proceed now.
// Returns (allowed, remaining, resetTime, error) like the Redis limiter.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.keys[key] = e
	}
	e.lastAccess = now
	if now.Sub(l.lastSweep) > sweepEvery {
		l.sweep(now)
	}
	l.mu.Unlock()

	allowed := e.limiter.AllowN(now, 1)
	tokens := e.limiter.TokensAt(now)

	remaining := int(math.Max(0, math.Floor(tokens)))
	reset := now
	if tokens < 1 && l.limit > 0 {
		reset = now.Add(time.Duration((1 - tokens) / float64(l.limit) * float64(time.Second)))
	}

	return allowed, remaining, reset, nil
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *Limiter) sweep(now time.Time) {
	for key, e := range l.keys {
		if now.Sub(e.lastAccess) > l.idle {
			delete(l.keys, key)
		}
	}
	l.lastSweep = now
}
