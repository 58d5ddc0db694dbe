package registry

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

type noopSink struct{}

func (noopSink) Emit(domain.Event) {}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newUpstream(t *testing.T, name string) *domain.Upstream {
	t.Helper()
	return &domain.Upstream{Name: name, URL: mustURL(t, "http://"+name+".local")}
}

func TestCreateUpstream_RejectsDuplicateName(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))

	err := r.CreateUpstream(newUpstream(t, "a"))
	require.Error(t, err)
	var cfgErr *domain.ConfigInvalidError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCreateUpstream_SeedsHealthAndBreaker(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))

	_, ok := r.UpstreamHealth("a")
	assert.True(t, ok)
	_, ok = r.UpstreamBreaker("a")
	assert.True(t, ok)
}

func TestDeleteUpstream_RejectsWhenReferencedByGroup(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))

	err := r.DeleteUpstream("a")
	require.Error(t, err)
	var depErr *domain.DependencyViolationError
	assert.ErrorAs(t, err, &depErr)
}

func TestDeleteUpstream_SucceedsWhenUnreferenced(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.DeleteUpstream("a"))

	_, ok := r.GetUpstream("a")
	assert.False(t, ok)
}

func TestCreateGroup_RejectsDanglingUpstreamReference(t *testing.T) {
	r := New(noopSink{}, nil)
	err := r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "ghost", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	})
	require.Error(t, err)
	var cfgErr *domain.ConfigInvalidError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCreateGroup_RejectsEmptyMembers(t *testing.T) {
	r := New(noopSink{}, nil)
	err := r.CreateGroup(&domain.Group{Name: "g", Strategy: domain.StrategyRoundRobin})
	require.Error(t, err)
}

func TestCreateGroup_BuildsRuntimeWithStrategyAndClient(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))

	rt, ok := r.GetGroupRuntime("g")
	require.True(t, ok)
	assert.NotNil(t, rt.Strategy)
	assert.NotNil(t, rt.Client)
	assert.Equal(t, domain.StrategyRoundRobin, rt.Strategy.Name())
}

func TestReplaceGroupUpstreams_RebuildsClientKeepsOldGroupValueAlive(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateUpstream(newUpstream(t, "b")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))

	before, ok := r.GetGroupRuntime("g")
	require.True(t, ok)

	require.NoError(t, r.ReplaceGroupUpstreams("g", []domain.Member{{UpstreamName: "b", Weight: 1}}))

	after, ok := r.GetGroupRuntime("g")
	require.True(t, ok)

	// The pre-swap runtime (and the *Group it pointed at) is untouched —
	// an in-flight request that already captured `before` keeps reading
	// the old member list (spec §8 scenario 6).
	assert.Equal(t, "a", before.Group.Members[0].UpstreamName)
	assert.Equal(t, "b", after.Group.Members[0].UpstreamName)
	assert.NotSame(t, before.Client, after.Client)
}

func TestReplaceGroupUpstreams_RejectsDanglingReference(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))

	err := r.ReplaceGroupUpstreams("g", []domain.Member{{UpstreamName: "ghost", Weight: 1}})
	require.Error(t, err)
}

func TestUpdateGroupClient_RebuildsClientAndStrategyKeepsMembers(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))
	before, _ := r.GetGroupRuntime("g")

	require.NoError(t, r.UpdateGroupClient("g", domain.ClientConfig{UserAgent: "relaylb-test/1.0"}))

	after, ok := r.GetGroupRuntime("g")
	require.True(t, ok)
	assert.Equal(t, "relaylb-test/1.0", after.Group.Client.UserAgent)
	assert.Equal(t, before.Group.Members, after.Group.Members)
	assert.NotSame(t, before.Strategy, after.Strategy)
	assert.NotSame(t, before.Client, after.Client)
}

func TestUpdateUpstream_PreservesBreakerWhenParamsUnchanged(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	brBefore, _ := r.UpstreamBreaker("a")

	updated := newUpstream(t, "a")
	updated.Headers = []domain.HeaderOp{{Op: domain.HeaderOpInsert, Key: "X-Test", Value: "1"}}
	require.NoError(t, r.UpdateUpstream("a", updated))

	brAfter, _ := r.UpstreamBreaker("a")
	assert.Same(t, brBefore, brAfter)
}

func TestUpdateUpstream_ResetsBreakerWhenParamsChange(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	brBefore, _ := r.UpstreamBreaker("a")

	updated := newUpstream(t, "a")
	updated.Breaker = domain.BreakerConfig{FailureRateThreshold: 0.9, CooldownSeconds: 5}
	require.NoError(t, r.UpdateUpstream("a", updated))

	brAfter, _ := r.UpstreamBreaker("a")
	assert.NotSame(t, brBefore, brAfter)
}

func TestUpdateUpstream_RejectsUnknownName(t *testing.T) {
	r := New(noopSink{}, nil)
	err := r.UpdateUpstream("ghost", newUpstream(t, "ghost"))
	require.Error(t, err)
}

func TestDeleteGroup_RemovesGroup(t *testing.T) {
	r := New(noopSink{}, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))
	require.NoError(t, r.CreateGroup(&domain.Group{
		Name:     "g",
		Members:  []domain.Member{{UpstreamName: "a", Weight: 1}},
		Strategy: domain.StrategyRoundRobin,
	}))
	require.NoError(t, r.DeleteGroup("g"))

	_, ok := r.GetGroupRuntime("g")
	assert.False(t, ok)
}

func TestBreakerTransition_EmitsEventForUpstream(t *testing.T) {
	var emitted []domain.Event
	sink := eventCapture(func(e domain.Event) { emitted = append(emitted, e) })
	r := New(sink, nil)
	require.NoError(t, r.CreateUpstream(newUpstream(t, "a")))

	br, ok := r.UpstreamBreaker("a")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		br.TryAcquire()
		br.Record(ports.OutcomeFailure)
	}

	require.NotEmpty(t, emitted)
	last := emitted[len(emitted)-1]
	assert.Equal(t, domain.EventBreakerTransition, last.Kind)
	assert.Equal(t, "a", last.Upstream)
}

type eventCapture func(domain.Event)

func (f eventCapture) Emit(e domain.Event) { f(e) }
