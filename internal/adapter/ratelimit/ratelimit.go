// Package ratelimit implements the per-client-IP token bucket of spec
// §4.4 step 1, backed by golang.org/x/time/rate. Grounded on the
// teacher's internal/adapter/security/request_rate_limit.go (per-IP
// limiter map with a background cleanup ticker reaping stale buckets).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relaylb/relaylb/internal/core/domain"
)

const defaultCleanupInterval = 5 * time.Minute
const staleAfter = 10 * time.Minute

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a per-client-IP token bucket keyed on IP address. Stale
// buckets (untouched for staleAfter) are reaped on a timer so long-lived
// processes don't accumulate one bucket per client forever.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     domain.RateLimit

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Limiter from a forward's configured per-client-IP budget.
// cfg.PerSecond <= 0 disables limiting; Allow always returns true.
func New(cfg domain.RateLimit) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	if cfg.PerSecond > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow reports whether a request from clientIP may proceed, consuming a
// token from its bucket if so.
func (l *Limiter) Allow(clientIP string) bool {
	if l.cfg.PerSecond <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[clientIP]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)}
		l.buckets[clientIP] = b
	}
	b.lastAccess = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.reapStale()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) reapStale() {
	cutoff := time.Now().Add(-staleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}
