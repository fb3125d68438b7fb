package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket guarding the training endpoints. Every key
// starts full with capacity tokens and refills at refillPerSec.
type Limiter struct {
	mu       sync.Mutex
	capacity float64
	refill   float64
	m        map[string]*bucket
	now      func() time.Time

	sweepEvery time.Duration
	lastSweep  time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		capacity: capacity,
		refill:   refillPerSec,
		m:        make(map[string]*bucket),
		now:      time.Now,

		sweepEvery: time.Minute,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets that have refilled to capacity. A missing key starts
// full, so dropping them does not change any answer.
func (l *Limiter) sweep(now time.Time) {
	l.lastSweep = now
	for k, b := range l.m {
		if b.tokens+now.Sub(b.last).Seconds()*l.refill >= l.capacity {
			delete(l.m, k)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// RetryAfter estimates how long key has to wait for its next token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok || b.tokens >= 1 || l.refill <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / l.refill * float64(time.Second))
}
