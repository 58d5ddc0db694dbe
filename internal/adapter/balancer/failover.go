package balancer

import (
	"context"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// Failover iterates the snapshot in configured order and returns the
// first admitted upstream, ignoring weights. Traffic concentrates on the
// primary while it is healthy and degrades to subsequent entries in order
// (spec §4.2).
type Failover struct{}

func NewFailover() *Failover { return &Failover{} }

func (f *Failover) Name() domain.Strategy { return domain.StrategyFailover }

func (f *Failover) Select(_ context.Context, snapshot []ports.UpstreamSnapshot) (*domain.Upstream, error) {
	for _, s := range snapshot {
		if s.Admitted {
			return s.Upstream, nil
		}
	}
	return nil, ErrNoHealthyUpstream
}
