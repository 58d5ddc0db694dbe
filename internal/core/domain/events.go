package domain

import "time"

// EventKind tags the shape of an Event so a sink can dispatch on it
// without a type switch on the payload.
type EventKind string

const (
	EventIngressRequest    EventKind = "ingress_request"
	EventRateLimitRejected EventKind = "rate_limit_rejected"
	EventUpstreamRequest   EventKind = "upstream_request"
	EventBreakerTransition EventKind = "breaker_transition"
)

// Event is the single typed payload the core emits to the (external)
// metrics collector. Only the fields relevant to EventKind are populated;
// Forward/Group/Upstream/Method/Path act as the label set spec §6
// requires on every metric.
type Event struct {
	Kind       EventKind
	At         time.Time
	Forward    string
	Group      string
	Upstream   string
	UpstreamURL string
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	Err        error
	BreakerFrom string
	BreakerTo   string
}

// EventSink receives Events from the data plane. Implementations must not
// block the caller for long: the forward pipeline emits on the hot path.
type EventSink interface {
	Emit(Event)
}
