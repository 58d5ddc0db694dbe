package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
)

func toRateLimit(c *RateLimitConfig) *domain.RateLimit {
	if c == nil {
		return nil
	}
	return &domain.RateLimit{PerSecond: c.PerSecond, Burst: c.Burst}
}

func toAuth(c AuthConfig) domain.Auth {
	kind := domain.AuthKind(c.Kind)
	if kind == "" {
		kind = domain.AuthNone
	}
	return domain.Auth{Kind: kind, Token: c.Token, Username: c.Username, Password: c.Password}
}

func toHeaderOps(c []HeaderOpConfig) []domain.HeaderOp {
	out := make([]domain.HeaderOp, 0, len(c))
	for _, h := range c {
		out = append(out, domain.HeaderOp{Op: domain.HeaderOpKind(h.Op), Key: h.Key, Value: h.Value})
	}
	return out
}

func toUpstream(c UpstreamConfig) (*domain.Upstream, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: invalid url: %w", c.Name, err)
	}
	return &domain.Upstream{
		Name:    c.Name,
		URL:     u,
		Auth:    toAuth(c.Auth),
		Headers: toHeaderOps(c.Headers),
		Breaker: domain.BreakerConfig{
			FailureRateThreshold: c.Breaker.FailureRateThreshold,
			CooldownSeconds:      c.Breaker.CooldownSeconds,
		},
		RateLimit: toRateLimit(c.RateLimit),
	}, nil
}

func toClientConfig(c ClientConfigYAML) (domain.ClientConfig, error) {
	// net.Dialer.KeepAlive's zero value enables OS-default probing, not
	// disables it; an unset (zero) keepalive_seconds must map to a
	// negative duration to actually turn keepalive off.
	keepalive := time.Duration(c.KeepaliveSeconds) * time.Second
	if c.KeepaliveSeconds == 0 {
		keepalive = -1
	}
	cc := domain.ClientConfig{
		UserAgent: c.UserAgent,
		Keepalive: keepalive,
		Stream:    c.Stream,
		Timeouts: domain.Timeouts{
			Connect: c.ConnectTimeout,
			Request: c.RequestTimeout,
			Idle:    c.IdleTimeout,
		},
	}
	if c.Retry != nil {
		cc.Retry = &domain.RetryPolicy{Attempts: c.Retry.Attempts, InitialBackoffMS: c.Retry.InitialBackoffMS}
	}
	if c.OutboundProxyURL != "" {
		proxyURL, err := url.Parse(c.OutboundProxyURL)
		if err != nil {
			return cc, fmt.Errorf("invalid outbound_proxy_url: %w", err)
		}
		cc.OutboundProxyURL = proxyURL
	}
	return cc, nil
}

func toGroup(c GroupConfig) (*domain.Group, error) {
	client, err := toClientConfig(c.Client)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", c.Name, err)
	}
	members := make([]domain.Member, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, domain.Member{UpstreamName: m.UpstreamName, Weight: m.Weight})
	}
	return &domain.Group{
		Name:     c.Name,
		Members:  members,
		Strategy: domain.Strategy(c.Strategy),
		Client:   client,
	}, nil
}

func toForward(c ForwardConfig) domain.Forward {
	routes := make([]domain.RouteRule, 0, len(c.Routes))
	for _, r := range c.Routes {
		routes = append(routes, domain.RouteRule{Pattern: r.Pattern, TargetGroup: r.TargetGroup})
	}
	return domain.Forward{
		Name:           c.Name,
		BindAddress:    c.BindAddress,
		Port:           c.Port,
		DefaultGroup:   c.DefaultGroup,
		Routes:         routes,
		IPRateLimit:    toRateLimit(c.IPRateLimit),
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Materialize creates every upstream then every group declared in f
// against groups, in that order since groups reference upstreams by
// name (spec §3 invariant). Call this once at startup against an empty
// registry.
func Materialize(f *File, groups ports.GroupManager) error {
	for _, uc := range f.Upstreams {
		u, err := toUpstream(uc)
		if err != nil {
			return err
		}
		if err := groups.CreateUpstream(u); err != nil {
			return err
		}
	}
	for _, gc := range f.UpstreamGroups {
		g, err := toGroup(gc)
		if err != nil {
			return err
		}
		if err := groups.CreateGroup(g); err != nil {
			return err
		}
	}
	return nil
}

// Forwards converts every forward declaration to its domain form.
func Forwards(f *File) []domain.Forward {
	out := make([]domain.Forward, 0, len(f.Forwards))
	for _, fc := range f.Forwards {
		out = append(out, toForward(fc))
	}
	return out
}
