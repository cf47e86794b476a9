// Package ratelimit tracks per-endpoint request rates with a token bucket.
// It is intentionally permissive: Allow never blocks a caller, and the
// package offers no blocking wait. The circuit
// breaker, not the rate limiter, is the layer that actually protects
// upstream providers from abuse; the limiter exists to surface rate
// pressure in stats rather than to gate traffic. Grounded on the teacher's
// internal/net/ratelimit/limiter.go, which keyed a
// golang.org/x/time/rate.Limiter per host behind a map guarded by a mutex.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per named endpoint, created lazily.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	rps      float64
	burst    int
}

// New builds a Limiter whose per-endpoint buckets refill at rps with the
// given burst capacity.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rps,
		burst:   burst,
	}
}

func (l *Limiter) bucket(endpoint string) *rate.Limiter {
	l.mu.RLock()
	b, ok := l.buckets[endpoint]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[endpoint]; ok {
		return b
	}
	b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.buckets[endpoint] = b
	return b
}

// Allow reports whether a request to endpoint may proceed right now,
// consuming a token if so. It never blocks.
func (l *Limiter) Allow(endpoint string) bool {
	return l.bucket(endpoint).Allow()
}

// SetRPS overrides the refill rate for a specific endpoint, used when a
// provider advertises its own rate limit.
func (l *Limiter) SetRPS(endpoint string, rps float64) {
	l.bucket(endpoint).SetLimit(rate.Limit(rps))
}

// Stats reports current token availability for an endpoint.
type Stats struct {
	Endpoint  string
	RPS       float64
	Burst     int
	Available float64
}

// Stats returns a snapshot for every endpoint that has been observed.
func (l *Limiter) Stats() []Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Stats, 0, len(l.buckets))
	for endpoint, b := range l.buckets {
		out = append(out, Stats{
			Endpoint:  endpoint,
			RPS:       float64(b.Limit()),
			Burst:     b.Burst(),
			Available: b.Tokens(),
		})
	}
	return out
}
