package domain

import (
	"fmt"
	"time"
)

// RateLimitedError is returned when a client IP has exhausted its token
// bucket budget (spec §7, disposition: 429, no upstream touched).
type RateLimitedError struct {
	ClientIP string
	Forward  string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: client %s on forward %s", e.ClientIP, e.Forward)
}

// NoHealthyUpstreamError is returned when a group's breakers are all open
// or the group is empty (spec §7, disposition: 503).
type NoHealthyUpstreamError struct {
	Group string
}

func (e *NoHealthyUpstreamError) Error() string {
	return fmt.Sprintf("no healthy upstream available in group %s", e.Group)
}

// CircuitOpenError describes a breaker rejecting a permit. The breaker
// itself reports a rejection as ports.PermitRejected from TryAcquire, not
// as this error; the select-and-gate loop then reselects excluding the
// rejecting upstream, so a rejection never reaches the client directly.
type CircuitOpenError struct {
	Upstream string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for upstream %s", e.Upstream)
}

// ConnectError wraps a TCP/TLS dial failure (spec §7: ConnectFailed /
// ConnectTimeout, retry-eligible, 502 after retries are exhausted).
type ConnectError struct {
	Upstream string
	Err      error
	Timeout  bool
}

func (e *ConnectError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("connect timeout to upstream %s: %v", e.Upstream, e.Err)
	}
	return fmt.Sprintf("connect failed to upstream %s: %v", e.Upstream, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// RequestTimeoutError covers both the header-phase timeout and the
// non-streaming total-request timeout (spec §7, retry-eligible, 504).
type RequestTimeoutError struct {
	Upstream string
	Phase    string // "headers" | "total"
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request timeout (%s) against upstream %s", e.Phase, e.Upstream)
}

// UpstreamError wraps a failure-class HTTP status returned by the upstream
// (spec §7: passed through unless retry policy says otherwise).
type UpstreamError struct {
	Upstream   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Upstream, e.StatusCode)
}

// StreamAbortedError marks a body interrupted mid-stream (spec §7:
// propagated to the client, logged, recorded as a breaker failure).
type StreamAbortedError struct {
	Upstream  string
	BytesSent int
	Err       error
}

func (e *StreamAbortedError) Error() string {
	return fmt.Sprintf("stream aborted after %d bytes from upstream %s: %v", e.BytesSent, e.Upstream, e.Err)
}

func (e *StreamAbortedError) Unwrap() error { return e.Err }

// DependencyViolationError is returned by the mutation API when a delete
// would leave a dangling reference (spec §7: 409 on the mutation
// endpoint, in-flight requests unaffected).
type DependencyViolationError struct {
	Entity      string
	Name        string
	ReferencedBy string
}

func (e *DependencyViolationError) Error() string {
	return fmt.Sprintf("%s %q is still referenced by %s", e.Entity, e.Name, e.ReferencedBy)
}

// ConfigInvalidError is a fail-fast startup validation failure (spec §7:
// exit with non-zero).
type ConfigInvalidError struct {
	Field  string
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

// ProxyError is the catch-all wrapper attached to an ingress response when
// forwarding fails, mirroring the teacher's domain.ProxyError shape so the
// forward pipeline logs a single consistent line per failed request.
type ProxyError struct {
	Err        error
	RequestID  string
	Upstream   string
	Method     string
	Path       string
	StatusCode int
	Latency    time.Duration
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy request failed [%s] %s %s -> %s: HTTP %d after %v: %v",
		e.RequestID, e.Method, e.Path, e.Upstream, e.StatusCode, e.Latency, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

func NewProxyError(requestID, upstream, method, path string, statusCode int, latency time.Duration, err error) *ProxyError {
	return &ProxyError{
		RequestID:  requestID,
		Upstream:   upstream,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Latency:    latency,
		Err:        err,
	}
}
