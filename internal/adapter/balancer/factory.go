package balancer

import (
	"fmt"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// New builds the ports.Strategy instance for a group's configured
// strategy tag and current member list. Called whenever a group is
// created or its membership is replaced (spec §4.6: "rebuilds the
// strategy's internal state").
func New(strategy domain.Strategy, members []domain.Member) (ports.Strategy, error) {
	switch strategy {
	case domain.StrategyRoundRobin, "":
		return NewRoundRobin(), nil
	case domain.StrategyWeightedRoundRobin:
		return NewWeightedRoundRobin(members), nil
	case domain.StrategyRandom:
		return NewRandom(), nil
	case domain.StrategyResponseAware:
		return NewResponseAware(), nil
	case domain.StrategyFailover:
		return NewFailover(), nil
	default:
		return nil, fmt.Errorf("unknown load balancer strategy: %s", strategy)
	}
}
