// Package ratelimit implements keyed token-bucket admission control.
//
// Each logical key (a route prefix, optionally combined with a client
// identifier) owns a bucket holding requests-per-minute tokens that refill
// continuously over a rolling minute. Buckets are created lazily, evicted
// after a period of inactivity, and capped in total number so an attacker
// rotating keys cannot exhaust memory.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default cache parameters.
const (
	// DefaultIdleTTL is how long an untouched bucket survives.
	DefaultIdleTTL = 10 * time.Minute

	// DefaultMaxKeys caps the number of distinct buckets.
	DefaultMaxKeys = 10000

	// cleanupInterval is how often stale buckets are reaped inline.
	cleanupInterval = 5 * time.Minute
)

// bucket pairs a limiter with its last-use time for idle eviction.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter maps keys to token buckets. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	idleTTL     time.Duration
	maxKeys     int
	lastCleanup time.Time
	logger      *slog.Logger

	now func() time.Time // replaced in tests
}

// New creates a Limiter. idleTTL and maxKeys fall back to the package
// defaults when zero.
func New(idleTTL time.Duration, maxKeys int, logger *slog.Logger) *Limiter {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		buckets:     make(map[string]*bucket),
		idleTTL:     idleTTL,
		maxKeys:     maxKeys,
		lastCleanup: time.Now(),
		logger:      logger,
		now:         time.Now,
	}
}

// Allow consumes one token from the bucket for key, creating the bucket on
// first use with a full allowance of perMinute tokens. Tokens refill
// continuously at perMinute per rolling minute. Returns false when the
// bucket is empty.
func (l *Limiter) Allow(key string, perMinute int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Inline reap of stale buckets, amortized across calls.
	if now.Sub(l.lastCleanup) > cleanupInterval {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastCleanup = now
	}

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxKeys {
			l.evictOldestLocked()
		}
		b = &bucket{
			lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		l.buckets[key] = b
	}

	b.lastSeen = now
	return b.lim.Allow()
}

// evictOldestLocked removes the least recently used bucket. Caller holds mu.
func (l *Limiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, b := range l.buckets {
		if first || b.lastSeen.Before(oldest) {
			oldestKey, oldest = k, b.lastSeen
			first = false
		}
	}
	if !first {
		delete(l.buckets, oldestKey)
		l.logger.Debug("evicted rate bucket at capacity", "key", oldestKey)
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
