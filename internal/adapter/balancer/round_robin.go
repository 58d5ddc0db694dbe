// Package balancer implements the five load-balancing strategies of spec
// §4.2 behind the shared ports.Strategy contract, following the teacher's
// tagged-variant-over-class-hierarchy approach (internal/adapter/balancer
// in thushan/olla) generalised with the snapshot/admission model the spec
// requires.
package balancer

import (
	"context"
	"sync/atomic"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// RoundRobin advances a shared atomic cursor by one position per
// selection, skipping unadmitted entries without consuming a tick (spec
// §4.2).
type RoundRobin struct {
	counter atomic.Uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Name() domain.Strategy { return domain.StrategyRoundRobin }

func (r *RoundRobin) Select(_ context.Context, snapshot []ports.UpstreamSnapshot) (*domain.Upstream, error) {
	admitted := admittedOnly(snapshot)
	if len(admitted) == 0 {
		return nil, ErrNoHealthyUpstream
	}
	idx := r.counter.Add(1) - 1
	return admitted[idx%uint64(len(admitted))].Upstream, nil
}

func admittedOnly(snapshot []ports.UpstreamSnapshot) []ports.UpstreamSnapshot {
	out := make([]ports.UpstreamSnapshot, 0, len(snapshot))
	for _, s := range snapshot {
		if s.Admitted {
			out = append(out, s)
		}
	}
	return out
}
