package config

import (
	"fmt"
	"time"
)

// Validate checks structural invariants Load can't express via yaml tags
// alone: duplicate names, dangling references between forwards, groups
// and upstreams, and the numeric ranges spec §3 gives every tunable
// field. Validation is strict: any out-of-range value fails the whole
// file rather than being clamped or defaulted.
func Validate(f *File) error {
	upstreamNames := make(map[string]bool, len(f.Upstreams))
	for _, u := range f.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("upstream with empty name")
		}
		if upstreamNames[u.Name] {
			return fmt.Errorf("duplicate upstream name %q", u.Name)
		}
		upstreamNames[u.Name] = true
		if u.URL == "" {
			return fmt.Errorf("upstream %q: url is required", u.Name)
		}
		if err := validateBreaker(u.Name, u.Breaker); err != nil {
			return err
		}
		if err := validateRateLimit(fmt.Sprintf("upstream %q", u.Name), u.RateLimit); err != nil {
			return err
		}
	}

	groupNames := make(map[string]bool, len(f.UpstreamGroups))
	for _, g := range f.UpstreamGroups {
		if g.Name == "" {
			return fmt.Errorf("group with empty name")
		}
		if groupNames[g.Name] {
			return fmt.Errorf("duplicate group name %q", g.Name)
		}
		groupNames[g.Name] = true
		if len(g.Members) == 0 {
			return fmt.Errorf("group %q: must declare at least one member", g.Name)
		}
		for _, m := range g.Members {
			if !upstreamNames[m.UpstreamName] {
				return fmt.Errorf("group %q: member references unknown upstream %q", g.Name, m.UpstreamName)
			}
			if m.Weight < 1 || m.Weight > 65535 {
				return fmt.Errorf("group %q: member %q weight %d out of range [1,65535]", g.Name, m.UpstreamName, m.Weight)
			}
		}
		if err := validateClient(g.Name, g.Client); err != nil {
			return err
		}
	}

	forwardNames := make(map[string]bool, len(f.Forwards))
	for _, fwd := range f.Forwards {
		if fwd.Name == "" {
			return fmt.Errorf("forward with empty name")
		}
		if forwardNames[fwd.Name] {
			return fmt.Errorf("duplicate forward name %q", fwd.Name)
		}
		forwardNames[fwd.Name] = true
		if fwd.DefaultGroup != "" && !groupNames[fwd.DefaultGroup] {
			return fmt.Errorf("forward %q: default_group references unknown group %q", fwd.Name, fwd.DefaultGroup)
		}
		for _, r := range fwd.Routes {
			if !groupNames[r.TargetGroup] {
				return fmt.Errorf("forward %q: route %q references unknown group %q", fwd.Name, r.Pattern, r.TargetGroup)
			}
		}
		if err := validateRateLimit(fmt.Sprintf("forward %q", fwd.Name), fwd.IPRateLimit); err != nil {
			return err
		}
	}

	if len(f.Forwards) == 0 {
		return fmt.Errorf("at least one forward must be configured")
	}

	return nil
}

func validateBreaker(upstreamName string, b BreakerConfigYAML) error {
	// Zero means "unspecified, fall back to the package default" (see
	// breaker.New), so only a non-zero value is range-checked.
	if b.FailureRateThreshold != 0 && (b.FailureRateThreshold < 0.01 || b.FailureRateThreshold > 1.0) {
		return fmt.Errorf("upstream %q: breaker.failure_rate_threshold %v out of range [0.01,1.0]", upstreamName, b.FailureRateThreshold)
	}
	if b.CooldownSeconds != 0 && (b.CooldownSeconds < 1 || b.CooldownSeconds > 3600) {
		return fmt.Errorf("upstream %q: breaker.cooldown_seconds %d out of range [1,3600]", upstreamName, b.CooldownSeconds)
	}
	return nil
}

func validateRateLimit(owner string, rl *RateLimitConfig) error {
	if rl == nil {
		return nil
	}
	if rl.PerSecond < 1 || rl.PerSecond > 10000 {
		return fmt.Errorf("%s: rate_limit.per_second %d out of range [1,10000]", owner, rl.PerSecond)
	}
	if rl.Burst < 1 || rl.Burst > 20000 {
		return fmt.Errorf("%s: rate_limit.burst %d out of range [1,20000]", owner, rl.Burst)
	}
	return nil
}

func validateClient(groupName string, c ClientConfigYAML) error {
	if c.KeepaliveSeconds != 0 && (c.KeepaliveSeconds < 5 || c.KeepaliveSeconds > 600) {
		return fmt.Errorf("group %q: client.keepalive_seconds %d out of range [5,600]", groupName, c.KeepaliveSeconds)
	}
	if c.ConnectTimeout != 0 && (c.ConnectTimeout < time.Second || c.ConnectTimeout > 120*time.Second) {
		return fmt.Errorf("group %q: client.connect_timeout %s out of range [1s,120s]", groupName, c.ConnectTimeout)
	}
	if c.RequestTimeout != 0 && (c.RequestTimeout < time.Second || c.RequestTimeout > 1200*time.Second) {
		return fmt.Errorf("group %q: client.request_timeout %s out of range [1s,1200s]", groupName, c.RequestTimeout)
	}
	if c.IdleTimeout != 0 && (c.IdleTimeout < 5*time.Second || c.IdleTimeout > 1800*time.Second) {
		return fmt.Errorf("group %q: client.idle_timeout %s out of range [5s,1800s]", groupName, c.IdleTimeout)
	}
	if c.Retry != nil {
		if c.Retry.Attempts < 1 || c.Retry.Attempts > 100 {
			return fmt.Errorf("group %q: client.retry.attempts %d out of range [1,100]", groupName, c.Retry.Attempts)
		}
		if c.Retry.InitialBackoffMS < 100 || c.Retry.InitialBackoffMS > 10000 {
			return fmt.Errorf("group %q: client.retry.initial_backoff_ms %d out of range [100,10000]", groupName, c.Retry.InitialBackoffMS)
		}
	}
	return nil
}
