package domain

import (
	"sync/atomic"
)

// ewmaFixedPointScale is the fixed-point scale used to encode the EWMA
// latency as an atomic integer (see §9 design notes: "encode EWMA as a
// fixed-point atomic integer updated by a compare-and-swap loop").
const ewmaFixedPointScale = 1000

// DefaultEWMAAlpha is the smoothing factor the forward pipeline applies to
// every upstream's EWMA latency; it is not configurable.
const DefaultEWMAAlpha = 0.15

// HealthState is the per-upstream mutable health view shared by the
// balancer (reads) and the forwarding pipeline (writes). Every field is
// updated lock-free.
type HealthState struct {
	ewmaLatencyFixed atomic.Int64 // milliseconds * ewmaFixedPointScale
	inFlight         atomic.Int64
	successes        atomic.Int64
	failures         atomic.Int64
}

// NewHealthState returns a HealthState with no samples recorded yet.
func NewHealthState() *HealthState {
	return &HealthState{}
}

// RecordLatency folds a new sample into the EWMA using a CAS loop so
// concurrent writers never lose an update. The first observed sample
// initialises the average, per spec §3.
func (h *HealthState) RecordLatency(sampleMS float64, alpha float64) {
	sample := int64(sampleMS * ewmaFixedPointScale)
	for {
		old := h.ewmaLatencyFixed.Load()
		var next int64
		if old == 0 {
			next = sample
		} else {
			next = int64((1-alpha)*float64(old) + alpha*float64(sample))
		}
		if h.ewmaLatencyFixed.CompareAndSwap(old, next) {
			return
		}
	}
}

// EWMALatencyMS returns the current EWMA latency in milliseconds.
func (h *HealthState) EWMALatencyMS() float64 {
	return float64(h.ewmaLatencyFixed.Load()) / ewmaFixedPointScale
}

// IncInFlight increments the in-flight counter at dispatch.
func (h *HealthState) IncInFlight() int64 {
	return h.inFlight.Add(1)
}

// DecInFlight decrements the in-flight counter at completion, never going
// below zero (spec §3 invariant).
func (h *HealthState) DecInFlight() {
	for {
		old := h.inFlight.Load()
		if old <= 0 {
			return
		}
		if h.inFlight.CompareAndSwap(old, old-1) {
			return
		}
	}
}

// InFlight returns the current in-flight count.
func (h *HealthState) InFlight() int64 {
	return h.inFlight.Load()
}

// RecordSuccess/RecordFailure feed the cumulative tallies behind
// SuccessRate, which the response-aware strategy reads; the breaker keeps
// its own outcome window and does not read them.
func (h *HealthState) RecordSuccess() { h.successes.Add(1) }
func (h *HealthState) RecordFailure() { h.failures.Add(1) }

// SuccessRate returns the success ratio over all recorded calls. Returns
// 1.0 when nothing has been recorded yet, so a brand-new upstream isn't
// penalised before it has any history.
func (h *HealthState) SuccessRate() float64 {
	s := h.successes.Load()
	f := h.failures.Load()
	total := s + f
	if total == 0 {
		return 1.0
	}
	return float64(s) / float64(total)
}

// ResetCounters clears the success/failure tallies, used when the breaker
// transitions back to Closed after a successful probe.
func (h *HealthState) ResetCounters() {
	h.successes.Store(0)
	h.failures.Store(0)
}
