package httpclient

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/relaylb/internal/core/domain"
)

func TestNew_NonStreamingSetsClientTimeout(t *testing.T) {
	cfg := domain.ClientConfig{
		Stream:  false,
		Timeouts: domain.Timeouts{Connect: 2 * time.Second, Request: 10 * time.Second},
	}
	c := New(cfg)
	assert.Equal(t, 12*time.Second, c.Timeout)
}

func TestNew_StreamingDisablesClientTimeout(t *testing.T) {
	cfg := domain.ClientConfig{
		Stream:  true,
		Timeouts: domain.Timeouts{Connect: 2 * time.Second, Request: 10 * time.Second},
	}
	c := New(cfg)
	assert.Equal(t, time.Duration(0), c.Timeout)
}

func TestNew_WiresOutboundProxy(t *testing.T) {
	proxyURL, err := url.Parse("http://proxy.local:8080")
	require.NoError(t, err)

	c := New(domain.ClientConfig{OutboundProxyURL: proxyURL})
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.Proxy)

	got, err := transport.Proxy(&http.Request{})
	require.NoError(t, err)
	assert.Equal(t, proxyURL, got)
}

func TestNew_NoProxyConfiguredLeavesProxyFuncNil(t *testing.T) {
	c := New(domain.ClientConfig{})
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Nil(t, transport.Proxy)
}

func TestNew_SetsIdleConnTimeoutFromConfig(t *testing.T) {
	c := New(domain.ClientConfig{Timeouts: domain.Timeouts{Idle: 90 * time.Second}})
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, transport.IdleConnTimeout)
}
