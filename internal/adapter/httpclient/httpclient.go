// Package httpclient builds the one-per-group outbound *http.Client
// described in spec §4.5: connect/idle/request timeouts, TCP keepalive,
// an optional outbound proxy, and streaming-friendly transport settings.
//
// Grounded on the teacher's internal/adapter/proxy/proxy.go NewService
// transport construction (custom DialContext setting TCP_NODELAY,
// MaxIdleConns/IdleConnTimeout/TLSHandshakeTimeout), generalised to take
// its timeouts from a per-group domain.ClientConfig instead of package
// constants.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/relaylb/relaylb/internal/core/domain"
)

const defaultMaxIdleConns = 100

// New builds an *http.Client for one group from its ClientConfig. The
// returned client satisfies ports.HTTPDoer.
func New(cfg domain.ClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.Timeouts.Connect,
		KeepAlive: cfg.Keepalive,
	}

	transport := &http.Transport{
		MaxIdleConns:        defaultMaxIdleConns,
		IdleConnTimeout:     cfg.Timeouts.Idle,
		TLSHandshakeTimeout: cfg.Timeouts.Connect,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	if cfg.OutboundProxyURL != nil {
		proxyURL := cfg.OutboundProxyURL
		transport.Proxy = func(*http.Request) (*url.URL, error) {
			return proxyURL, nil
		}
	}

	client := &http.Client{Transport: transport}

	// When streaming, the total-request timeout is disabled on the client
	// itself; the forward pipeline instead bounds only the header phase
	// with a context deadline and governs inter-chunk gaps with the idle
	// timeout (spec §4.4 "Streaming semantics"). When not streaming, the
	// client-wide timeout covers connect+request end to end.
	if !cfg.Stream {
		client.Timeout = cfg.Timeouts.Connect + cfg.Timeouts.Request
	}

	return client
}
