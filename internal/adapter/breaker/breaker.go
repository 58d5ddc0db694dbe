// Package breaker implements the per-upstream circuit breaker described
// in spec §4.1: a three-state machine (Closed/Open/HalfOpen) gating calls
// to one upstream, with a race-free half-open probe reservation.
//
// Grounded on the teacher's internal/adapter/unifier/circuit_breaker.go,
// generalised from a fixed failure-count threshold to the spec's
// failure-rate-over-a-window model.
package breaker

import (
	"sync"
	"time"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

const (
	// DefaultFailureRateThreshold is T in spec §4.1.
	DefaultFailureRateThreshold = 0.5
	// DefaultCooldown is C in spec §4.1.
	DefaultCooldown = 30 * time.Second
	// MinSamplesToTrip is the minimum number of window samples before a
	// failure rate can trip the breaker (spec §4.1: "a minimum number of
	// samples, >= 5").
	MinSamplesToTrip = 5
	// WindowSize is the number of most-recent call outcomes considered
	// when computing the failure rate. The spec leaves the choice of
	// sample-count vs time-window open (§9 Open Questions); relaylb picks
	// a fixed-size ring of recent outcomes, documented in DESIGN.md.
	WindowSize = 20
)

type stateTag int32

const (
	stateClosed stateTag = iota
	stateOpen
	stateHalfOpen
)

// Breaker is one upstream's circuit breaker instance.
type Breaker struct {
	name      string
	threshold float64
	cooldown  time.Duration

	mu sync.Mutex // guards the ring buffer and state transitions

	state     stateTag
	since     time.Time // when the current Open/HalfOpen period began
	ring      [WindowSize]bool
	ringN     int
	ringCount int
	halfOpenProbeTaken bool

	onTransition func(from, to ports.BreakerStateTag)
}

// New builds a Breaker for one upstream. Zero threshold/cooldown fall
// back to the package defaults, matching the "Parameters" paragraph of
// spec §4.1.
func New(name string, cfg domain.BreakerConfig, onTransition func(from, to ports.BreakerStateTag)) *Breaker {
	threshold := cfg.FailureRateThreshold
	if threshold <= 0 {
		threshold = DefaultFailureRateThreshold
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		name:         name,
		threshold:    threshold,
		cooldown:     cooldown,
		state:        stateClosed,
		onTransition: onTransition,
	}
}

// TryAcquire reserves a call slot. In Closed it always grants. In Open it
// rejects unless the cooldown has elapsed, in which case it transitions to
// HalfOpen and reserves the single probe slot. In HalfOpen only the first
// concurrent caller gets the probe; the rest are rejected until it
// resolves (spec §4.1).
func (b *Breaker) TryAcquire() ports.PermitResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return ports.PermitGranted

	case stateOpen:
		if time.Since(b.since) >= b.cooldown {
			b.transitionLocked(stateHalfOpen)
			b.halfOpenProbeTaken = true
			return ports.PermitGranted
		}
		return ports.PermitRejected

	case stateHalfOpen:
		if !b.halfOpenProbeTaken {
			b.halfOpenProbeTaken = true
			return ports.PermitGranted
		}
		return ports.PermitRejected

	default:
		return ports.PermitRejected
	}
}

// Record feeds the outcome of a previously-granted permit back into the
// state machine.
func (b *Breaker) Record(outcome ports.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		if outcome == ports.OutcomeSuccess {
			b.transitionLocked(stateClosed)
		} else {
			b.transitionLocked(stateOpen)
		}
		return

	case stateOpen:
		// A stray record against an already-open breaker (e.g. a probe
		// that resolved after a concurrent reject-driven reselection)
		// is ignored; the state is authoritative.
		return

	case stateClosed:
		b.pushLocked(outcome == ports.OutcomeFailure)
		if b.ringCount >= MinSamplesToTrip && b.failureRateLocked() > b.threshold {
			b.transitionLocked(stateOpen)
		}
	}
}

// State returns the breaker's current externally-visible state tag.
func (b *Breaker) State() ports.BreakerStateTag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tagLocked()
}

func (b *Breaker) tagLocked() ports.BreakerStateTag {
	switch b.state {
	case stateOpen:
		return ports.BreakerOpen
	case stateHalfOpen:
		return ports.BreakerHalfOpen
	default:
		return ports.BreakerClosed
	}
}

func (b *Breaker) pushLocked(failed bool) {
	b.ring[b.ringN%WindowSize] = failed
	b.ringN++
	if b.ringCount < WindowSize {
		b.ringCount++
	}
}

func (b *Breaker) failureRateLocked() float64 {
	if b.ringCount == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.ringCount; i++ {
		if b.ring[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.ringCount)
}

func (b *Breaker) transitionLocked(to stateTag) {
	from := b.tagLocked()
	b.state = to
	b.since = time.Now()
	b.halfOpenProbeTaken = false
	if to == stateClosed {
		b.ringN = 0
		b.ringCount = 0
	}
	if b.onTransition != nil {
		toTag := b.tagLocked()
		b.onTransition(from, toTag)
	}
}
