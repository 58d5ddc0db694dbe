package proxy

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

// dispatch builds and sends the outbound request to upstream and relays a
// success-class response to the client. Failure-class responses (5xx) and
// transport errors are returned without writing anything to w, so the
// select-and-gate loop in forwardTo is free to retry against a different
// upstream; only once an attempt actually reaches the client does dispatch
// touch the ResponseWriter (spec §4.4 steps c-g).
func (p *Pipeline) dispatch(ctx context.Context, runtime *ports.GroupRuntime, upstream *domain.Upstream, health *domain.HealthState, w http.ResponseWriter, r *http.Request, requestID, groupName string) (status int, bytesSent int64, err error) {
	health.IncInFlight()
	defer health.DecInFlight()

	target := joinURL(upstream.URL, r.URL)

	cfg := runtime.Group.Client
	headerTimeout := cfg.Timeouts.Connect
	if !cfg.Stream {
		headerTimeout += cfg.Timeouts.Request
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// A zero budget (no timeouts configured) arms no header deadline.
	var timer *time.Timer
	if headerTimeout > 0 {
		timer = time.AfterFunc(headerTimeout, cancel)
	}
	stopTimer := func() bool { return timer == nil || timer.Stop() }

	outReq, buildErr := http.NewRequestWithContext(reqCtx, r.Method, target.String(), r.Body)
	if buildErr != nil {
		stopTimer()
		return 0, 0, &domain.ConnectError{Upstream: upstream.Name, Err: buildErr}
	}
	copyClientHeaders(outReq.Header, r.Header, upstream)
	outReq.Header.Set("X-Request-Id", requestID)

	resp, doErr := runtime.Client.Do(outReq)
	timerFired := !stopTimer()

	if doErr != nil {
		if timerFired {
			return 0, 0, &domain.RequestTimeoutError{Upstream: upstream.Name, Phase: "headers"}
		}
		return 0, 0, &domain.ConnectError{Upstream: upstream.Name, Err: doErr}
	}

	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return resp.StatusCode, 0, &domain.UpstreamError{Upstream: upstream.Name, StatusCode: resp.StatusCode}
	}

	defer resp.Body.Close()

	dst := w.Header()
	for k, vals := range resp.Header {
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
	stripHopByHop(dst)
	w.WriteHeader(resp.StatusCode)

	sent, streamErr := streamResponse(reqCtx, ctx, w, resp.Body, cfg.Timeouts.Idle, defaultStreamBufferSize)
	if streamErr != nil {
		return resp.StatusCode, sent, &domain.StreamAbortedError{Upstream: upstream.Name, BytesSent: int(sent), Err: streamErr}
	}

	return resp.StatusCode, sent, nil
}

// joinURL appends the incoming request path and query onto the upstream's
// configured base URL, preserving any path prefix the upstream itself
// carries (e.g. "/v1").
func joinURL(base *url.URL, reqURL *url.URL) *url.URL {
	out := *base
	out.Path = path.Join(base.Path, reqURL.Path)
	out.RawQuery = reqURL.RawQuery
	return &out
}
