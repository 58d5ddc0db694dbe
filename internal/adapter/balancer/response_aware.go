package balancer

import (
	"context"
	"math"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// scoreEpsilon prevents a 0% success rate from producing a division
// blow-up, per spec §4.2.
const scoreEpsilon = 0.01

// ResponseAware scores every admitted upstream by
// ema_latency_ms * (in_flight + 1) * (1 / max(success_rate, epsilon))
// and selects the minimum, breaking ties by list order (spec §4.2). It
// holds no mutable selection state of its own: the health data it reads
// lives on the shared domain.HealthState, which the forward pipeline
// writes to.
type ResponseAware struct{}

func NewResponseAware() *ResponseAware { return &ResponseAware{} }

func (r *ResponseAware) Name() domain.Strategy { return domain.StrategyResponseAware }

func (r *ResponseAware) Select(_ context.Context, snapshot []ports.UpstreamSnapshot) (*domain.Upstream, error) {
	admitted := admittedOnly(snapshot)
	if len(admitted) == 0 {
		return nil, ErrNoHealthyUpstream
	}

	var best *domain.Upstream
	bestScore := math.Inf(1)
	for _, s := range admitted {
		score := score(s.Health)
		if score < bestScore {
			bestScore = score
			best = s.Upstream
		}
	}
	return best, nil
}

func score(h *domain.HealthState) float64 {
	ema := h.EWMALatencyMS()
	if ema <= 0 {
		// No samples yet: treat as instantaneously fast so a fresh
		// upstream gets a chance to be scored on its own merits rather
		// than being starved by an artificially high default latency.
		ema = 0
	}
	inFlight := float64(h.InFlight()) + 1
	successRate := math.Max(h.SuccessRate(), scoreEpsilon)
	return ema * inFlight * (1 / successRate)
}
