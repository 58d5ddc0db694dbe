package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

func recordTransitions(t *testing.T) (*[]string, func(from, to ports.BreakerStateTag)) {
	t.Helper()
	var got []string
	return &got, func(from, to ports.BreakerStateTag) {
		got = append(got, from.String()+"->"+to.String())
	}
}

func TestBreaker_StartsClosedAndGrantsFreely(t *testing.T) {
	b := New("up", domain.BreakerConfig{}, nil)
	assert.Equal(t, ports.BreakerClosed, b.State())
	for i := 0; i < 3; i++ {
		assert.Equal(t, ports.PermitGranted, b.TryAcquire())
		b.Record(ports.OutcomeSuccess)
	}
	assert.Equal(t, ports.BreakerClosed, b.State())
}

func TestBreaker_TripsAfterMinSamplesAboveThreshold(t *testing.T) {
	transitions, onTransition := recordTransitions(t)
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.5}, onTransition)

	// 3 failures, 2 successes: rate 0.6 > 0.5, reaches MinSamplesToTrip (5).
	outcomes := []ports.Outcome{
		ports.OutcomeFailure, ports.OutcomeFailure, ports.OutcomeSuccess,
		ports.OutcomeFailure, ports.OutcomeSuccess,
	}
	for _, o := range outcomes {
		require.Equal(t, ports.PermitGranted, b.TryAcquire())
		b.Record(o)
	}

	assert.Equal(t, ports.BreakerOpen, b.State())
	require.Len(t, *transitions, 1)
	assert.Equal(t, "closed->open", (*transitions)[0])
}

func TestBreaker_StaysClosedBelowMinSamples(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1}, nil)
	// 4 failures: below MinSamplesToTrip (5), so no trip regardless of rate.
	for i := 0; i < 4; i++ {
		require.Equal(t, ports.PermitGranted, b.TryAcquire())
		b.Record(ports.OutcomeFailure)
	}
	assert.Equal(t, ports.BreakerClosed, b.State())
}

func TestBreaker_RejectsWhileOpenBeforeCooldown(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 3600}, nil)
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	require.Equal(t, ports.BreakerOpen, b.State())
	assert.Equal(t, ports.PermitRejected, b.TryAcquire())
}

func TestBreaker_HalfOpenAfterCooldownGrantsSingleProbe(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 0}, nil)
	b.cooldown = 1 * time.Millisecond
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	require.Equal(t, ports.BreakerOpen, b.State())
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, ports.PermitGranted, b.TryAcquire())
	assert.Equal(t, ports.BreakerHalfOpen, b.State())
	assert.Equal(t, ports.PermitRejected, b.TryAcquire())
}

func TestBreaker_HalfOpenProbeRaceGrantsExactlyOne(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 0}, nil)
	b.cooldown = 1 * time.Millisecond
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	time.Sleep(5 * time.Millisecond)

	const n = 50
	var wg sync.WaitGroup
	var granted int
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if b.TryAcquire() == ports.PermitGranted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}

func TestBreaker_HalfOpenSuccessClosesAndResetsWindow(t *testing.T) {
	transitions, onTransition := recordTransitions(t)
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 0}, onTransition)
	b.cooldown = 1 * time.Millisecond
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	time.Sleep(5 * time.Millisecond)

	require.Equal(t, ports.PermitGranted, b.TryAcquire())
	b.Record(ports.OutcomeSuccess)

	assert.Equal(t, ports.BreakerClosed, b.State())
	assert.Equal(t, 0, b.ringCount)
	assert.Equal(t,
		[]string{"closed->open", "open->half_open", "half_open->closed"},
		*transitions,
	)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 0}, nil)
	b.cooldown = 1 * time.Millisecond
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	time.Sleep(5 * time.Millisecond)

	require.Equal(t, ports.PermitGranted, b.TryAcquire())
	b.Record(ports.OutcomeFailure)

	assert.Equal(t, ports.BreakerOpen, b.State())
	assert.Equal(t, ports.PermitRejected, b.TryAcquire())
}

func TestBreaker_RecordAgainstOpenIsIgnored(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.1, CooldownSeconds: 3600}, nil)
	for i := 0; i < MinSamplesToTrip; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	require.Equal(t, ports.BreakerOpen, b.State())

	b.Record(ports.OutcomeSuccess)
	assert.Equal(t, ports.BreakerOpen, b.State())
}

func TestBreaker_DefaultsAppliedForZeroConfig(t *testing.T) {
	b := New("up", domain.BreakerConfig{}, nil)
	assert.Equal(t, DefaultFailureRateThreshold, b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
}

func TestBreaker_RingOnlyConsidersMostRecentWindow(t *testing.T) {
	b := New("up", domain.BreakerConfig{FailureRateThreshold: 0.9}, nil)
	// MinSamplesToTrip-1 failures, one sample short of the trip floor; with
	// a 0.9 threshold the successes that follow keep the failure rate
	// below it from the fifth sample on, so the breaker never opens...
	for i := 0; i < MinSamplesToTrip-1; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeFailure)
	}
	require.Equal(t, ports.BreakerClosed, b.State())

	// ...then push WindowSize successes. Once the ring has fully wrapped,
	// none of the original failures remain in the window, so the failure
	// rate must read back to zero.
	for i := 0; i < WindowSize; i++ {
		b.TryAcquire()
		b.Record(ports.OutcomeSuccess)
	}
	assert.Equal(t, ports.BreakerClosed, b.State())
	assert.Equal(t, float64(0), b.failureRateLocked())
}
