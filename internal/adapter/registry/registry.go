// Package registry implements the Group Manager and Config Mutation API of
// spec §4.6: the live {group_name -> Group} and {upstream_name -> Upstream}
// maps, their per-upstream breaker/health-state companions, and the
// create/update/delete/replace operations that mutate them.
//
// Grounded on the teacher's internal/adapter/registry/memory_registry.go
// (RWMutex-guarded read-mostly maps with a single write path) generalised
// to the spec's upstream/group/breaker model.
package registry

import (
	"sync"

	"github.com/relaylb/relaylb/internal/adapter/balancer"
	"github.com/relaylb/relaylb/internal/adapter/breaker"
	"github.com/relaylb/relaylb/internal/adapter/httpclient"
	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
	"github.com/relaylb/relaylb/internal/logger"
)

type upstreamEntry struct {
	record  *domain.Upstream
	health  *domain.HealthState
	breaker *breaker.Breaker
}

// Registry is the concurrency-safe Group Manager. Reads take the RWMutex
// in read mode (cheap, unlimited parallelism); every mutation takes it in
// write mode, giving the single serialisation point spec §4.6 requires.
// While a mutation holds the write lock, every reader waits, whichever
// group it is reading.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*upstreamEntry
	groups    map[string]*ports.GroupRuntime
	sink      domain.EventSink
	logger    *logger.StyledLogger
}

// New builds an empty Registry. Events about breaker transitions are
// forwarded to sink; pass a no-op sink in tests. log may be nil, in which
// case breaker transitions are only emitted as events, not logged.
func New(sink domain.EventSink, log *logger.StyledLogger) *Registry {
	return &Registry{
		upstreams: make(map[string]*upstreamEntry),
		groups:    make(map[string]*ports.GroupRuntime),
		sink:      sink,
		logger:    log,
	}
}

func (r *Registry) onBreakerTransition(name string, from, to ports.BreakerStateTag) {
	if r.logger != nil {
		r.logger.BreakerTransition(name, from, to)
	}
	if r.sink != nil {
		r.sink.Emit(domain.Event{
			Kind:        domain.EventBreakerTransition,
			Upstream:    name,
			BreakerFrom: from.String(),
			BreakerTo:   to.String(),
		})
	}
}

func (r *Registry) CreateUpstream(u *domain.Upstream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.upstreams[u.Name]; exists {
		return &domain.ConfigInvalidError{Field: "upstream.name", Reason: "duplicate name: " + u.Name}
	}

	r.upstreams[u.Name] = r.newEntryLocked(u)
	return nil
}

func (r *Registry) newEntryLocked(u *domain.Upstream) *upstreamEntry {
	name := u.Name
	return &upstreamEntry{
		record: u,
		health: domain.NewHealthState(),
		breaker: breaker.New(name, u.Breaker, func(from, to ports.BreakerStateTag) {
			r.onBreakerTransition(name, from, to)
		}),
	}
}

// UpdateUpstream atomically replaces an upstream record. The breaker's
// runtime state is preserved when only ancillary fields (URL, auth,
// headers) change and reset when the breaker's own threshold or cooldown
// parameters change, per spec §4.6.
func (r *Registry) UpdateUpstream(name string, u *domain.Upstream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.upstreams[name]
	if !ok {
		return &domain.ConfigInvalidError{Field: "upstream.name", Reason: "not found: " + name}
	}

	entry := &upstreamEntry{record: u, health: existing.health, breaker: existing.breaker}
	if existing.record.Breaker != u.Breaker {
		entry.breaker = breaker.New(u.Name, u.Breaker, func(from, to ports.BreakerStateTag) {
			r.onBreakerTransition(u.Name, from, to)
		})
	}
	r.upstreams[name] = entry
	return nil
}

func (r *Registry) DeleteUpstream(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.upstreams[name]; !ok {
		return &domain.ConfigInvalidError{Field: "upstream.name", Reason: "not found: " + name}
	}

	for _, g := range r.groups {
		for _, m := range g.Group.Members {
			if m.UpstreamName == name {
				return &domain.DependencyViolationError{Entity: "upstream", Name: name, ReferencedBy: "group " + g.Group.Name}
			}
		}
	}

	delete(r.upstreams, name)
	return nil
}

func (r *Registry) GetUpstream(name string) (*domain.Upstream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.upstreams[name]
	if !ok {
		return nil, false
	}
	return e.record, true
}

func (r *Registry) ListUpstreams() []*domain.Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Upstream, 0, len(r.upstreams))
	for _, e := range r.upstreams {
		out = append(out, e.record)
	}
	return out
}

func (r *Registry) UpstreamBreaker(name string) (ports.Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.upstreams[name]
	if !ok {
		return nil, false
	}
	return e.breaker, true
}

func (r *Registry) UpstreamHealth(name string) (*domain.HealthState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.upstreams[name]
	if !ok {
		return nil, false
	}
	return e.health, true
}

// CreateGroup validates that every member resolves to an existing
// upstream (spec §3 invariant), builds the group's strategy and HTTP
// client, and registers it.
func (r *Registry) CreateGroup(g *domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[g.Name]; exists {
		return &domain.ConfigInvalidError{Field: "group.name", Reason: "duplicate name: " + g.Name}
	}
	if len(g.Members) == 0 {
		return &domain.ConfigInvalidError{Field: "group.members", Reason: "group must have at least one upstream"}
	}
	for _, m := range g.Members {
		if _, ok := r.upstreams[m.UpstreamName]; !ok {
			return &domain.ConfigInvalidError{Field: "group.members", Reason: "dangling upstream reference: " + m.UpstreamName}
		}
	}

	strategy, err := balancer.New(g.Strategy, g.Members)
	if err != nil {
		return err
	}

	r.groups[g.Name] = &ports.GroupRuntime{
		Group:    g,
		Strategy: strategy,
		Client:   httpclient.New(g.Client),
	}
	return nil
}

// ReplaceGroupUpstreams atomically swaps a group's member list, rebuilding
// its strategy and HTTP client instances together. Existing in-flight requests keep the
// *domain.Upstream reference they already selected, so the swap is safe
// with respect to them (spec §3, §4.6, §8 scenario 6).
func (r *Registry) ReplaceGroupUpstreams(groupName string, members []domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.groups[groupName]
	if !ok {
		return &domain.ConfigInvalidError{Field: "group.name", Reason: "not found: " + groupName}
	}
	if len(members) == 0 {
		return &domain.ConfigInvalidError{Field: "group.members", Reason: "group must have at least one upstream"}
	}
	for _, m := range members {
		if _, ok := r.upstreams[m.UpstreamName]; !ok {
			return &domain.ConfigInvalidError{Field: "group.members", Reason: "dangling upstream reference: " + m.UpstreamName}
		}
	}

	newGroup := *existing.Group
	newGroup.Members = members
	strategy, err := balancer.New(newGroup.Strategy, members)
	if err != nil {
		return err
	}

	r.groups[groupName] = &ports.GroupRuntime{
		Group:    &newGroup,
		Strategy: strategy,
		Client:   httpclient.New(newGroup.Client),
	}
	return nil
}

// UpdateGroupClient replaces a group's HTTP client configuration,
// rebuilding the client and strategy instances together (spec §3).
func (r *Registry) UpdateGroupClient(groupName string, client domain.ClientConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.groups[groupName]
	if !ok {
		return &domain.ConfigInvalidError{Field: "group.name", Reason: "not found: " + groupName}
	}

	newGroup := *existing.Group
	newGroup.Client = client
	strategy, err := balancer.New(newGroup.Strategy, newGroup.Members)
	if err != nil {
		return err
	}

	r.groups[groupName] = &ports.GroupRuntime{
		Group:    &newGroup,
		Strategy: strategy,
		Client:   httpclient.New(client),
	}
	return nil
}

func (r *Registry) DeleteGroup(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[name]; !ok {
		return &domain.ConfigInvalidError{Field: "group.name", Reason: "not found: " + name}
	}
	delete(r.groups, name)
	return nil
}

func (r *Registry) GetGroupRuntime(name string) (*ports.GroupRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[name]
	return g, ok
}

func (r *Registry) ListGroups() []*domain.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.Group)
	}
	return out
}

var _ ports.GroupManager = (*Registry)(nil)
