// Package ports declares the seams between relaylb's core and its
// adapters: the load-balancer strategy contract, the circuit breaker
// contract, the group registry/mutation contract, and the outward-facing
// proxy service.
package ports

import (
	"context"
	"net/http"

	"github.com/relaylb/relaylb/internal/core/domain"
)

// UpstreamSnapshot is the read-only view a Strategy selects from: the
// Upstream record plus its shared HealthState and a breaker admission
// check, without granting the strategy direct access to the breaker
// (spec §4.2: "Strategies do not call the breaker directly").
type UpstreamSnapshot struct {
	Upstream  *domain.Upstream
	Health    *domain.HealthState
	Admitted  bool
}

// Strategy is the shared contract all five load-balancing algorithms
// implement. Select is pure with respect to the snapshot passed in; any
// internal mutable state (round-robin cursor, WRR weight accumulators)
// belongs to the concrete strategy instance.
type Strategy interface {
	Name() domain.Strategy
	Select(ctx context.Context, snapshot []UpstreamSnapshot) (*domain.Upstream, error)
}

// PermitResult is the outcome of Breaker.TryAcquire.
type PermitResult int

const (
	PermitGranted PermitResult = iota
	PermitRejected
)

// Outcome is what Breaker.Record expects once a permitted call completes.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// Breaker is the per-upstream fault detector gating calls (spec §4.1).
type Breaker interface {
	TryAcquire() PermitResult
	Record(Outcome)
	State() BreakerStateTag
}

// BreakerStateTag is the externally observable tag of a Breaker's state
// machine.
type BreakerStateTag int

const (
	BreakerClosed BreakerStateTag = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerStateTag) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// GroupRuntime is what the Group Manager holds per group: the immutable
// record, its live strategy instance, and its HTTP client.
type GroupRuntime struct {
	Group    *domain.Group
	Strategy Strategy
	Client   HTTPDoer
}

// HTTPDoer is the minimal contract the forward pipeline needs from a
// group's HTTP client pool; *http.Client satisfies it directly.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GroupManager is the control-plane registry of groups and upstreams.
// Reads are lock-free (or close to it); writes serialise through a single
// mutation lock (spec §4.6).
type GroupManager interface {
	CreateUpstream(u *domain.Upstream) error
	UpdateUpstream(name string, u *domain.Upstream) error
	DeleteUpstream(name string) error
	GetUpstream(name string) (*domain.Upstream, bool)
	ListUpstreams() []*domain.Upstream

	CreateGroup(g *domain.Group) error
	ReplaceGroupUpstreams(groupName string, members []domain.Member) error
	UpdateGroupClient(groupName string, client domain.ClientConfig) error
	DeleteGroup(name string) error
	GetGroupRuntime(name string) (*GroupRuntime, bool)
	ListGroups() []*domain.Group

	UpstreamBreaker(name string) (Breaker, bool)
	UpstreamHealth(name string) (*domain.HealthState, bool)
}

// Router maps an incoming request path to a target group name.
type Router interface {
	Match(path string) (group string, ok bool)
}

// ProxyService is the ingress-facing handler contract for one Forward.
type ProxyService interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
