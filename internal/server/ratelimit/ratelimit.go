// Package ratelimit provides a simple per-client token bucket rate limiter
// for the authentication endpoints.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// bucket tracks the remaining tokens for a single client.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-client token bucket rate limiter keyed by remote IP.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	refill   float64 // tokens per second
	maxIdle  time.Duration
	now      func() time.Time
}

// NewLimiter creates a limiter allowing capacity requests in a burst,
// refilling at refillPerSecond tokens per second per client.
func NewLimiter(capacity int, refillPerSecond float64) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		refill:   refillPerSecond,
		maxIdle:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether the client identified by key may proceed,
// consuming one token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * l.refill
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--

	l.evictIdleLocked(now)
	return true
}

// evictIdleLocked drops buckets that have not been seen recently.
// Caller must hold l.mu.
func (l *Limiter) evictIdleLocked(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.maxIdle {
			delete(l.buckets, key)
		}
	}
}

// Middleware wraps a handler, rejecting requests over the limit with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey derives the limiter key from the request's remote address.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
