package balancer

import (
	"context"
	"sync"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// WeightedRoundRobin implements the smooth weighted round-robin algorithm
// (spec §4.2): every tick, every accumulator gains its configured weight,
// the maximum is selected, and the selected accumulator is decremented by
// the total weight. This avoids the bursty clustering a naive
// weight-as-repeat-count scheme produces.
type WeightedRoundRobin struct {
	mu     sync.Mutex
	accum  map[string]int
	weight map[string]int
}

// NewWeightedRoundRobin builds a WRR selector for the given members. It
// must be rebuilt (via NewWeightedRoundRobin) whenever the group's member
// list changes, per spec §4.6 ("rebuilds the strategy's internal state").
func NewWeightedRoundRobin(members []domain.Member) *WeightedRoundRobin {
	w := &WeightedRoundRobin{
		accum:  make(map[string]int, len(members)),
		weight: make(map[string]int, len(members)),
	}
	for _, m := range members {
		weight := m.Weight
		if weight <= 0 {
			weight = 1
		}
		w.weight[m.UpstreamName] = weight
	}
	return w
}

func (w *WeightedRoundRobin) Name() domain.Strategy { return domain.StrategyWeightedRoundRobin }

func (w *WeightedRoundRobin) Select(_ context.Context, snapshot []ports.UpstreamSnapshot) (*domain.Upstream, error) {
	admitted := admittedOnly(snapshot)
	if len(admitted) == 0 {
		return nil, ErrNoHealthyUpstream
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	var best *ports.UpstreamSnapshot
	bestAccum := 0
	for i := range admitted {
		name := admitted[i].Upstream.Name
		weight, ok := w.weight[name]
		if !ok {
			weight = 1
			w.weight[name] = weight
		}
		total += weight
		w.accum[name] += weight
		if best == nil || w.accum[name] > bestAccum {
			best = &admitted[i]
			bestAccum = w.accum[name]
		}
	}

	w.accum[best.Upstream.Name] -= total
	return best.Upstream, nil
}
