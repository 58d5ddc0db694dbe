package balancer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// Random uniformly selects among the admitted upstreams (spec §4.2).
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom() *Random {
	return &Random{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *Random) Name() domain.Strategy { return domain.StrategyRandom }

func (r *Random) Select(_ context.Context, snapshot []ports.UpstreamSnapshot) (*domain.Upstream, error) {
	admitted := admittedOnly(snapshot)
	if len(admitted) == 0 {
		return nil, ErrNoHealthyUpstream
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(admitted))
	r.mu.Unlock()
	return admitted[idx].Upstream, nil
}
