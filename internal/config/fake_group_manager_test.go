package config

import (
	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// fakeGroupManager is a minimal in-memory ports.GroupManager double used
// to verify Materialize's ordering without pulling in the registry's
// breaker/balancer wiring.
type fakeGroupManager struct {
	upstreams map[string]*domain.Upstream
	groups    map[string]*domain.Group
}

func newFakeGroupManager() *fakeGroupManager {
	return &fakeGroupManager{
		upstreams: make(map[string]*domain.Upstream),
		groups:    make(map[string]*domain.Group),
	}
}

func (f *fakeGroupManager) CreateUpstream(u *domain.Upstream) error {
	f.upstreams[u.Name] = u
	return nil
}

func (f *fakeGroupManager) UpdateUpstream(name string, u *domain.Upstream) error {
	f.upstreams[name] = u
	return nil
}

func (f *fakeGroupManager) DeleteUpstream(name string) error {
	delete(f.upstreams, name)
	return nil
}

func (f *fakeGroupManager) GetUpstream(name string) (*domain.Upstream, bool) {
	u, ok := f.upstreams[name]
	return u, ok
}

func (f *fakeGroupManager) ListUpstreams() []*domain.Upstream {
	out := make([]*domain.Upstream, 0, len(f.upstreams))
	for _, u := range f.upstreams {
		out = append(out, u)
	}
	return out
}

func (f *fakeGroupManager) CreateGroup(g *domain.Group) error {
	f.groups[g.Name] = g
	return nil
}

func (f *fakeGroupManager) ReplaceGroupUpstreams(groupName string, members []domain.Member) error {
	f.groups[groupName].Members = members
	return nil
}

func (f *fakeGroupManager) UpdateGroupClient(groupName string, client domain.ClientConfig) error {
	f.groups[groupName].Client = client
	return nil
}

func (f *fakeGroupManager) DeleteGroup(name string) error {
	delete(f.groups, name)
	return nil
}

func (f *fakeGroupManager) GetGroupRuntime(name string) (*ports.GroupRuntime, bool) {
	g, ok := f.groups[name]
	if !ok {
		return nil, false
	}
	return &ports.GroupRuntime{Group: g}, true
}

func (f *fakeGroupManager) ListGroups() []*domain.Group {
	out := make([]*domain.Group, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out
}

func (f *fakeGroupManager) UpstreamBreaker(string) (ports.Breaker, bool) { return nil, false }
func (f *fakeGroupManager) UpstreamHealth(string) (*domain.HealthState, bool) {
	return nil, false
}

var _ ports.GroupManager = (*fakeGroupManager)(nil)
