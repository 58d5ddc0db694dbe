package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/relaylb/internal/core/domain"
)

func TestLimiter_DisabledWhenPerSecondNonPositive(t *testing.T) {
	l := New(domain.RateLimit{PerSecond: 0})
	defer l.Stop()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("1.2.3.4"))
	}
}

func TestLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	l := New(domain.RateLimit{PerSecond: 1, Burst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "burst token %d should be admitted", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestLimiter_BucketsAreIndependentPerIP(t *testing.T) {
	l := New(domain.RateLimit{PerSecond: 1, Burst: 1})
	defer l.Stop()

	require.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))
}

func TestLimiter_ReapStaleRemovesOldBuckets(t *testing.T) {
	l := New(domain.RateLimit{PerSecond: 1, Burst: 1})
	defer l.Stop()

	require.True(t, l.Allow("1.1.1.1"))
	l.mu.Lock()
	l.buckets["1.1.1.1"].lastAccess = time.Now().Add(-staleAfter - time.Second)
	l.mu.Unlock()

	l.reapStale()

	l.mu.Lock()
	_, ok := l.buckets["1.1.1.1"]
	l.mu.Unlock()
	assert.False(t, ok)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := New(domain.RateLimit{PerSecond: 1, Burst: 1})
	assert.NotPanics(t, func() {
		l.Stop()
		l.Stop()
	})
}
