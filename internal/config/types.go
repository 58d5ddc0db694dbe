// Package config loads and validates relaylb's YAML configuration file
// and materialises it into the domain/ports model the rest of the
// system runs on.
//
// Grounded on the teacher's internal/config/config.go and types.go (a
// typed, yaml-tagged Config tree unmarshalled by viper, with defaults
// filled in before Unmarshal) generalised from olla's endpoint/discovery
// model to relaylb's forward/upstream/group model.
package config

import "time"

// File is the root of config.yaml.
type File struct {
	AdminServer    AdminServerConfig `yaml:"admin_server"`
	Logging        LoggingConfig     `yaml:"logging"`
	Forwards       []ForwardConfig   `yaml:"forwards"`
	Upstreams      []UpstreamConfig  `yaml:"upstreams"`
	UpstreamGroups []GroupConfig     `yaml:"upstream_groups"`
}

// AdminServerConfig configures the admin listener (spec §4.7).
type AdminServerConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	TokenEnvVar string `yaml:"token_env_var"`
}

// LoggingConfig is the file's logging section. It is parsed with the rest
// of the file, but cmd/relaylb builds its logger from the --debug flag and
// does not read these fields.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	Pretty     bool   `yaml:"pretty"`
	FileOutput bool   `yaml:"file_output"`
	LogDir     string `yaml:"log_dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RouteRuleConfig is one routing rule within a forward.
type RouteRuleConfig struct {
	Pattern     string `yaml:"pattern"`
	TargetGroup string `yaml:"target_group"`
}

// RateLimitConfig is a token-bucket description shared by forwards and
// upstreams.
type RateLimitConfig struct {
	PerSecond int `yaml:"per_second"`
	Burst     int `yaml:"burst"`
}

// ForwardConfig is one ingress listener.
type ForwardConfig struct {
	Name           string            `yaml:"name"`
	BindAddress    string            `yaml:"bind_address"`
	Port           int               `yaml:"port"`
	DefaultGroup   string            `yaml:"default_group"`
	Routes         []RouteRuleConfig `yaml:"routes"`
	IPRateLimit    *RateLimitConfig  `yaml:"ip_rate_limit"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
}

// AuthConfig describes how relaylb authenticates to one upstream.
type AuthConfig struct {
	Kind     string `yaml:"kind"` // none | bearer | basic
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HeaderOpConfig is a single declared header mutation.
type HeaderOpConfig struct {
	Op    string `yaml:"op"` // insert | replace | remove
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// BreakerConfigYAML is the per-upstream circuit breaker tuning.
type BreakerConfigYAML struct {
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`
	CooldownSeconds      int     `yaml:"cooldown_seconds"`
}

// UpstreamConfig is one backend LLM endpoint.
type UpstreamConfig struct {
	Name      string             `yaml:"name"`
	URL       string             `yaml:"url"`
	Auth      AuthConfig         `yaml:"auth"`
	Headers   []HeaderOpConfig   `yaml:"headers"`
	Breaker   BreakerConfigYAML  `yaml:"breaker"`
	RateLimit *RateLimitConfig   `yaml:"rate_limit"`
}

// MemberConfig is one (upstream, weight) pair within a group.
type MemberConfig struct {
	UpstreamName string `yaml:"upstream_name"`
	Weight       int    `yaml:"weight"`
}

// RetryPolicyConfig is the group's retry behaviour.
type RetryPolicyConfig struct {
	Attempts         int `yaml:"attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
}

// ClientConfigYAML is the group's HTTP client tuning.
type ClientConfigYAML struct {
	UserAgent        string             `yaml:"user_agent"`
	KeepaliveSeconds int                `yaml:"keepalive_seconds"`
	Stream           bool               `yaml:"stream"`
	ConnectTimeout   time.Duration      `yaml:"connect_timeout"`
	RequestTimeout   time.Duration      `yaml:"request_timeout"`
	IdleTimeout      time.Duration      `yaml:"idle_timeout"`
	Retry            *RetryPolicyConfig `yaml:"retry"`
	OutboundProxyURL string             `yaml:"outbound_proxy_url"`
}

// GroupConfig is a named, ordered collection of upstreams sharing a
// strategy and HTTP client.
type GroupConfig struct {
	Name     string           `yaml:"name"`
	Members  []MemberConfig   `yaml:"members"`
	Strategy string           `yaml:"strategy"`
	Client   ClientConfigYAML `yaml:"client"`
}

// Default returns a File with sensible defaults filled in, the way the
// teacher's DefaultConfig does, before the on-disk file is unmarshalled
// on top of it.
func Default() *File {
	return &File{
		AdminServer: AdminServerConfig{
			BindAddress: "127.0.0.1",
			Port:        9090,
			TokenEnvVar: "RELAYLB_ADMIN_TOKEN",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Theme:  "default",
			Pretty: true,
		},
	}
}
