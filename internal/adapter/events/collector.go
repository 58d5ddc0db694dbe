// Package events implements the domain.EventSink the forward pipeline
// reports to: a process-wide metrics collector rendered as Prometheus
// text exposition by the admin server's /metrics route.
//
// Grounded on the teacher's internal/adapter/stats.Collector (a
// centralised, lock-free collector every component reports into, keyed
// per-endpoint with xsync counters) generalised from olla's single
// endpoint-stats table into per-upstream counters plus process-wide
// ingress, rate-limit and breaker-trip totals.
package events

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/relaylb/relaylb/internal/core/domain"
)

type upstreamCounters struct {
	requests *xsync.Counter
	failures *xsync.Counter
	latency  *xsync.Counter // sum of milliseconds, for an average
}

func newUpstreamCounters() *upstreamCounters {
	return &upstreamCounters{
		requests: xsync.NewCounter(),
		failures: xsync.NewCounter(),
		latency:  xsync.NewCounter(),
	}
}

// Collector aggregates every Event emitted by running forwards into a
// small set of counters, safe for heavy concurrent writes from many
// pipelines and occasional reads from the admin server.
type Collector struct {
	upstreams *xsync.Map[string, *upstreamCounters]

	ingressTotal  *xsync.Counter
	rateLimited   *xsync.Counter
	breakerTrips  int64 // atomic: count of transitions into "open"
	startedAt     time.Time
}

// NewCollector builds an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		upstreams:    xsync.NewMap[string, *upstreamCounters](),
		ingressTotal: xsync.NewCounter(),
		rateLimited:  xsync.NewCounter(),
		startedAt:    time.Now(),
	}
}

// Emit implements domain.EventSink.
func (c *Collector) Emit(e domain.Event) {
	switch e.Kind {
	case domain.EventIngressRequest:
		c.ingressTotal.Inc()

	case domain.EventRateLimitRejected:
		c.rateLimited.Inc()

	case domain.EventUpstreamRequest:
		counters, _ := c.upstreams.LoadOrStore(e.Upstream, newUpstreamCounters())
		counters.requests.Inc()
		counters.latency.Add(e.Duration.Milliseconds())
		if e.Err != nil || e.StatusCode >= 500 {
			counters.failures.Inc()
		}

	case domain.EventBreakerTransition:
		if e.BreakerTo == "open" {
			atomic.AddInt64(&c.breakerTrips, 1)
		}
	}
}

// WritePrometheus renders the collected counters in Prometheus text
// exposition format.
func (c *Collector) WritePrometheus(w io.Writer) error {
	fmt.Fprintf(w, "# HELP relaylb_uptime_seconds Seconds since the process started.\n")
	fmt.Fprintf(w, "# TYPE relaylb_uptime_seconds gauge\n")
	fmt.Fprintf(w, "relaylb_uptime_seconds %.0f\n", time.Since(c.startedAt).Seconds())

	fmt.Fprintf(w, "# HELP relaylb_ingress_requests_total Total requests accepted by a forward.\n")
	fmt.Fprintf(w, "# TYPE relaylb_ingress_requests_total counter\n")
	fmt.Fprintf(w, "relaylb_ingress_requests_total %d\n", c.ingressTotal.Value())

	fmt.Fprintf(w, "# HELP relaylb_rate_limited_total Requests rejected by the per-client rate limiter.\n")
	fmt.Fprintf(w, "# TYPE relaylb_rate_limited_total counter\n")
	fmt.Fprintf(w, "relaylb_rate_limited_total %d\n", c.rateLimited.Value())

	fmt.Fprintf(w, "# HELP relaylb_breaker_trips_total Count of breaker transitions into the open state.\n")
	fmt.Fprintf(w, "# TYPE relaylb_breaker_trips_total counter\n")
	fmt.Fprintf(w, "relaylb_breaker_trips_total %d\n", atomic.LoadInt64(&c.breakerTrips))

	names := make([]string, 0)
	c.upstreams.Range(func(name string, _ *upstreamCounters) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	fmt.Fprintf(w, "# HELP relaylb_upstream_requests_total Requests dispatched to an upstream.\n")
	fmt.Fprintf(w, "# TYPE relaylb_upstream_requests_total counter\n")
	for _, name := range names {
		counters, _ := c.upstreams.Load(name)
		fmt.Fprintf(w, "relaylb_upstream_requests_total{upstream=%q} %d\n", name, counters.requests.Value())
	}

	fmt.Fprintf(w, "# HELP relaylb_upstream_failures_total Failed or 5xx responses from an upstream.\n")
	fmt.Fprintf(w, "# TYPE relaylb_upstream_failures_total counter\n")
	for _, name := range names {
		counters, _ := c.upstreams.Load(name)
		fmt.Fprintf(w, "relaylb_upstream_failures_total{upstream=%q} %d\n", name, counters.failures.Value())
	}

	fmt.Fprintf(w, "# HELP relaylb_upstream_latency_ms_avg Average dispatch latency in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE relaylb_upstream_latency_ms_avg gauge\n")
	for _, name := range names {
		counters, _ := c.upstreams.Load(name)
		requests := counters.requests.Value()
		avg := float64(0)
		if requests > 0 {
			avg = float64(counters.latency.Value()) / float64(requests)
		}
		fmt.Fprintf(w, "relaylb_upstream_latency_ms_avg{upstream=%q} %.2f\n", name, avg)
	}

	return nil
}

// Uptime returns how long this Collector (and therefore the process) has
// been running, for the admin server's /health response.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

var _ domain.EventSink = (*Collector)(nil)
