package coingecko

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to the public API and backs off after a 429.
// It never retries; a refused request simply fails.
type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex

	requestCount     int64
	rateLimitHits    int64
	lastRateLimitHit time.Time

	backoffDuration   time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	now               func() time.Time
}

// NewRateLimiter creates a token bucket limiter allowing rps requests per second
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter:           rate.NewLimiter(rate.Limit(rps), burst),
		maxBackoff:        5 * time.Minute,
		backoffMultiplier: 2,
		now:               time.Now,
	}
}

// Allow reports whether a request may be made now without blocking
func (l *RateLimiter) Allow() bool {
	l.mu.RLock()
	backoffDuration := l.backoffDuration
	lastHit := l.lastRateLimitHit
	l.mu.RUnlock()

	if backoffDuration > 0 && l.now().Sub(lastHit) < backoffDuration {
		return false
	}

	return l.limiter.Allow()
}

// RecordRateLimitHit records a 429 and grows the cooldown
func (l *RateLimiter) RecordRateLimitHit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rateLimitHits++
	l.lastRateLimitHit = l.now()

	if l.backoffDuration == 0 {
		l.backoffDuration = 5 * time.Second
	} else {
		l.backoffDuration = time.Duration(float64(l.backoffDuration) * l.backoffMultiplier)
		if l.backoffDuration > l.maxBackoff {
			l.backoffDuration = l.maxBackoff
		}
	}
}

// RecordSuccess records a successful request and clears the cooldown
func (l *RateLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requestCount++
	l.backoffDuration = 0
}

// Backoff returns the current cooldown duration
func (l *RateLimiter) Backoff() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.backoffDuration
}

// GetStats returns rate limiter statistics
func (l *RateLimiter) GetStats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"request_count":      l.requestCount,
		"rate_limit_hits":    l.rateLimitHits,
		"last_rate_limit":    l.lastRateLimitHit,
		"current_backoff_ms": l.backoffDuration.Milliseconds(),
	}
}
