package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter hands out one token bucket per client key (usually the remote IP)
type KeyedRateLimiter struct {
	limiters map[string]*keyedLimiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	rejected int64
	now      func() time.Time
}

// NewKeyedRateLimiter creates a limiter allowing requestsPerSecond per key with the given burst
func NewKeyedRateLimiter(cfg RateLimitConfig) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*keyedLimiter),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
	}
}

// Allow consumes a token for key and reports whether the request may proceed
func (l *KeyedRateLimiter) Allow(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	entry, exists := l.limiters[key]
	if !exists {
		entry = &keyedLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		return true
	}

	l.rejected++
	logrus.WithFields(logrus.Fields{
		"component": "KeyedRateLimiter",
		"key":       key,
		"rejected":  l.rejected,
	}).Debug("Rate limit exceeded")
	return false
}

// Cleanup drops limiters that have been idle longer than the configured TTL
func (l *KeyedRateLimiter) Cleanup() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys
func (l *KeyedRateLimiter) Size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.limiters)
}

// RejectedCount returns how many requests were refused since start
func (l *KeyedRateLimiter) RejectedCount() int64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.rejected
}
