// Package proxy implements the forward pipeline of spec §4.4: the
// ingress handler that rate-limits, routes, runs the select-and-gate
// loop against a group's balancer and breakers, forwards the request, and
// relays the response body with backpressure.
//
// Grounded on the teacher's internal/adapter/proxy/proxy.go ProxyRequest
// (request-ID/start-time context propagation, panic recovery on the hot
// path, streamResponse's chunked relay under combined client/upstream
// cancellation) generalised to the spec's multi-group, breaker-gated,
// retrying pipeline.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaylb/relaylb/internal/adapter/ratelimit"
	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
	"github.com/relaylb/relaylb/internal/logger"
)

const (
	defaultStreamBufferSize = 32 * 1024
	maxBackoff              = 30 * time.Second
)

// Pipeline is the ports.ProxyService for one Forward.
type Pipeline struct {
	forward     domain.Forward
	router      *atomicRouter
	groups      ports.GroupManager
	sink        domain.EventSink
	limiter     *ratelimit.Limiter
	logger      *logger.StyledLogger
}

// atomicRouter holds the forward's route lookup. It is set once in New and
// never replaced: routing rules stay fixed for the Pipeline's lifetime.
type atomicRouter struct {
	get func(path string) (string, bool)
}

// New builds a Pipeline for one Forward.
func New(forward domain.Forward, routerMatch func(path string) (string, bool), groups ports.GroupManager, sink domain.EventSink, log *logger.StyledLogger) *Pipeline {
	var limiter *ratelimit.Limiter
	if forward.IPRateLimit != nil {
		limiter = ratelimit.New(*forward.IPRateLimit)
	}
	return &Pipeline{
		forward: forward,
		router:  &atomicRouter{get: routerMatch},
		groups:  groups,
		sink:    sink,
		limiter: limiter,
		logger:  log,
	}
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx := r.Context()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("proxy panic recovered", "request_id", requestID, "panic", rec)
			if w.Header().Get("Content-Type") == "" {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}
	}()

	clientIP := clientIPFromRequest(r)
	if p.limiter != nil && !p.limiter.Allow(clientIP) {
		p.sink.Emit(domain.Event{Kind: domain.EventRateLimitRejected, Forward: p.forward.Name, At: start})
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	groupName, ok := p.router.get(r.URL.Path)
	if !ok {
		groupName = p.forward.DefaultGroup
	}

	statusCode, err := p.forwardTo(ctx, groupName, w, r, requestID, start)
	if err != nil {
		proxyErr := domain.NewProxyError(requestID, groupName, r.Method, r.URL.Path, statusCode, time.Since(start), err)
		p.logger.Error(proxyErr.Error())
	}

	p.sink.Emit(domain.Event{
		Kind:       domain.EventIngressRequest,
		Forward:    p.forward.Name,
		Group:      groupName,
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: statusCode,
		Duration:   time.Since(start),
		Err:        err,
		At:         start,
	})
}

func clientIPFromRequest(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// forwardTo runs the select-and-gate loop (spec §4.4 step 3) and returns
// the HTTP status code written to the client, for event labelling.
func (p *Pipeline) forwardTo(ctx context.Context, groupName string, w http.ResponseWriter, r *http.Request, requestID string, start time.Time) (int, error) {
	runtime, ok := p.groups.GetGroupRuntime(groupName)
	if !ok {
		return writeStatus(w, http.StatusServiceUnavailable), fmt.Errorf("group %q not found", groupName)
	}

	attempts := 1
	var retry *domain.RetryPolicy
	if runtime.Group.Client.Retry != nil {
		retry = runtime.Group.Client.Retry
		attempts = retry.Attempts + 1
	}

	var lastErr error
	backoff := time.Duration(0)
	if retry != nil {
		backoff = time.Duration(retry.InitialBackoffMS) * time.Millisecond
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return writeStatus(w, http.StatusGatewayTimeout), ctx.Err()
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		upstream, br, err := p.selectAndGate(runtime)
		if err != nil {
			lastErr = err
			// No admitted upstream anywhere in the group: this is
			// terminal for the whole pipeline, retrying won't help.
			return writeStatus(w, http.StatusServiceUnavailable), err
		}

		health, _ := p.groups.UpstreamHealth(upstream.Name)
		dispatchStart := time.Now()
		status, bytesSent, dispatchErr := p.dispatch(ctx, runtime, upstream, health, w, r, requestID, groupName)

		if dispatchErr == nil {
			wasHalfOpen := br.State() == ports.BreakerHalfOpen
			br.Record(ports.OutcomeSuccess)
			if wasHalfOpen && br.State() == ports.BreakerClosed {
				// The probe succeeded and the breaker closed: the old
				// failure tally no longer reflects the upstream's current
				// behaviour, so the response-aware strategy shouldn't keep
				// scoring it against history from before the outage.
				health.ResetCounters()
			}
			health.RecordSuccess()
			health.RecordLatency(float64(time.Since(dispatchStart).Milliseconds()), domain.DefaultEWMAAlpha)
			p.sink.Emit(domain.Event{
				Kind:        domain.EventUpstreamRequest,
				Forward:     p.forward.Name,
				Group:       groupName,
				Upstream:    upstream.Name,
				UpstreamURL: upstream.URL.String(),
				Method:      r.Method,
				Path:        r.URL.Path,
				StatusCode:  status,
				Duration:    time.Since(dispatchStart),
				At:          dispatchStart,
			})
			return status, nil
		}

		lastErr = dispatchErr
		br.Record(ports.OutcomeFailure)
		health.RecordFailure()
		p.sink.Emit(domain.Event{
			Kind:        domain.EventUpstreamRequest,
			Forward:     p.forward.Name,
			Group:       groupName,
			Upstream:    upstream.Name,
			UpstreamURL: upstream.URL.String(),
			Method:      r.Method,
			Path:        r.URL.Path,
			StatusCode:  status,
			Duration:    time.Since(start),
			Err:         dispatchErr,
		})

		if !isRetryEligible(dispatchErr) || attempt == attempts-1 {
			if bytesSent > 0 {
				// Headers (and possibly some body) already reached the
				// client; nothing more we can send but close out cleanly.
				return status, dispatchErr
			}
			return writeStatus(w, statusForError(dispatchErr)), dispatchErr
		}

		p.logger.WarnWithUpstream("request failed, retrying", upstream.Name, "request_id", requestID, "attempt", attempt+1, "error", dispatchErr)
	}

	return writeStatus(w, http.StatusBadGateway), lastErr
}

// selectAndGate implements spec §4.4 step 3a/3b: ask the balancer for an
// upstream, reconfirm admission via the breaker, and reselect excluding
// any upstream whose permit was rejected until one is granted or the
// group is exhausted.
func (p *Pipeline) selectAndGate(runtime *ports.GroupRuntime) (*domain.Upstream, ports.Breaker, error) {
	excluded := make(map[string]bool)

	for try := 0; try < len(runtime.Group.Members)+1; try++ {
		snapshot := make([]ports.UpstreamSnapshot, 0, len(runtime.Group.Members))
		for _, m := range runtime.Group.Members {
			if excluded[m.UpstreamName] {
				continue
			}
			u, ok := p.groups.GetUpstream(m.UpstreamName)
			if !ok {
				continue
			}
			health, _ := p.groups.UpstreamHealth(m.UpstreamName)
			br, _ := p.groups.UpstreamBreaker(m.UpstreamName)
			admitted := br != nil && br.State() != ports.BreakerOpen
			snapshot = append(snapshot, ports.UpstreamSnapshot{Upstream: u, Health: health, Admitted: admitted})
		}

		if len(snapshot) == 0 {
			return nil, nil, &domain.NoHealthyUpstreamError{Group: runtime.Group.Name}
		}

		chosen, err := runtime.Strategy.Select(context.Background(), snapshot)
		if err != nil {
			return nil, nil, &domain.NoHealthyUpstreamError{Group: runtime.Group.Name}
		}

		br, ok := p.groups.UpstreamBreaker(chosen.Name)
		if !ok {
			excluded[chosen.Name] = true
			continue
		}

		if br.TryAcquire() == ports.PermitGranted {
			return chosen, br, nil
		}

		excluded[chosen.Name] = true
	}

	return nil, nil, &domain.NoHealthyUpstreamError{Group: runtime.Group.Name}
}

func writeStatus(w http.ResponseWriter, status int) int {
	w.WriteHeader(status)
	return status
}

func isRetryEligible(err error) bool {
	switch err.(type) {
	case *domain.ConnectError, *domain.RequestTimeoutError:
		return true
	case *domain.UpstreamError:
		return true
	default:
		return false
	}
}

func statusForError(err error) int {
	switch e := err.(type) {
	case *domain.RequestTimeoutError:
		return http.StatusGatewayTimeout
	case *domain.ConnectError:
		return http.StatusBadGateway
	case *domain.UpstreamError:
		if e.StatusCode > 0 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	case *domain.StreamAbortedError:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
