package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
)

var _ ports.RateLimiter = (*ClientLimiter)(nil)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// ClientLimiter applies a shared token-bucket rate limit per client key.
// All keys share the same rate and burst, configured once at startup.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	stop     chan struct{}
}

// NewClientLimiter creates a limiter store with the given per-client rate
// (tokens per second) and burst. It starts a background goroutine that
// evicts limiters idle longer than ttl. Call Stop to terminate it.
func NewClientLimiter(r float64, burst int, ttl time.Duration) *ClientLimiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &ClientLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Stop terminates the background eviction goroutine.
func (s *ClientLimiter) Stop() {
	close(s.stop)
}

func (s *ClientLimiter) evictLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Evict()
		case <-s.stop:
			return
		}
	}
}

// Allow checks if a request from the given client key is within limits.
func (s *ClientLimiter) Allow(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = entry
	}

	entry.lastUsed = time.Now()
	return entry.limiter.Allow()
}

// Evict removes limiters idle longer than the TTL.
func (s *ClientLimiter) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	for key, entry := range s.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(s.limiters, key)
		}
	}
}

// Len returns the number of active limiters.
func (s *ClientLimiter) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
