package domain

import (
	"net/url"
	"time"
)

// AuthKind identifies how a request to an Upstream is authenticated.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthBasic  AuthKind = "basic"
)

// Auth describes the authentication the forward pipeline injects into
// an outbound request before it reaches the Upstream.
type Auth struct {
	Kind     AuthKind
	Token    string
	Username string
	Password string
}

// HeaderOpKind is one of the three header mutations a HeaderOp performs.
type HeaderOpKind string

const (
	HeaderOpInsert  HeaderOpKind = "insert"
	HeaderOpReplace HeaderOpKind = "replace"
	HeaderOpRemove  HeaderOpKind = "remove"
)

// HeaderOp is a single declared header mutation, applied in list order.
type HeaderOp struct {
	Op    HeaderOpKind
	Key   string
	Value string
}

// BreakerConfig carries the per-upstream circuit breaker parameters.
// Zero values mean "use package defaults" (see breaker.DefaultFailureRateThreshold,
// breaker.DefaultCooldown).
type BreakerConfig struct {
	FailureRateThreshold float64
	CooldownSeconds      int
}

// RateLimit is a token-bucket description, used both for the per-upstream
// rate limit and the per-forward per-client-IP rate limit.
type RateLimit struct {
	PerSecond int
	Burst     int
}

// Upstream is the immutable description of one backend LLM endpoint.
// Values are never mutated in place: UpdateUpstream builds a new *Upstream
// and swaps it in atomically, so callers holding a reference keep reading
// a consistent, unchanging view of it for the lifetime of their request.
type Upstream struct {
	Name      string
	URL       *url.URL
	Auth      Auth
	Headers   []HeaderOp
	Breaker   BreakerConfig
	RateLimit *RateLimit
}

// Strategy is the tag of a load-balancing algorithm a Group uses.
type Strategy string

const (
	StrategyRoundRobin         Strategy = "round_robin"
	StrategyWeightedRoundRobin Strategy = "weighted_round_robin"
	StrategyRandom             Strategy = "random"
	StrategyResponseAware      Strategy = "response_aware"
	StrategyFailover           Strategy = "failover"
)

// Timeouts holds the three timeout budgets a Group's HTTP client enforces.
type Timeouts struct {
	Connect time.Duration
	Request time.Duration
	Idle    time.Duration
}

// RetryPolicy is the optional retry behaviour for a Group's select-and-gate
// loop (spec §4.4 step 3).
type RetryPolicy struct {
	Attempts           int
	InitialBackoffMS   int
}

// ClientConfig is the HTTP client configuration a Group owns; a new client
// instance and strategy instance are built together whenever a Group is
// mutated (spec §3, Group attributes).
type ClientConfig struct {
	UserAgent    string
	Keepalive    time.Duration
	Stream       bool
	Timeouts     Timeouts
	Retry        *RetryPolicy
	OutboundProxyURL *url.URL
}

// Member is one (upstream_name, weight) pair in a Group's ordered list.
type Member struct {
	UpstreamName string
	Weight       int
}

// Group is the immutable description of a named, ordered collection of
// upstreams sharing a balancing strategy and HTTP client configuration.
// Like Upstream, a Group value is never mutated: ReplaceGroupUpstreams and
// the other mutation operations build a new *Group and swap it in.
type Group struct {
	Name     string
	Members  []Member
	Strategy Strategy
	Client   ClientConfig
}

// RouteRule maps one path pattern to a target group for a Forward.
type RouteRule struct {
	Pattern     string
	TargetGroup string
}

// Forward is a named ingress listener.
type Forward struct {
	Name           string
	BindAddress    string
	Port           int
	DefaultGroup   string
	Routes         []RouteRule
	IPRateLimit    *RateLimit
	ConnectTimeout time.Duration
}
