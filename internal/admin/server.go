// Package admin implements relaylb's admin HTTP surface (spec §4.7): a
// second, separate listener exposing health, metrics and the Config
// Mutation API as thin JSON handlers.
//
// Grounded on the teacher's internal/router.RouteRegistry (named routes
// registered in a fixed order, logged as a pterm table on startup)
// adapted from a mux-wiring helper into the admin server's own route
// table, since relaylb's admin surface is a second listener rather than
// routes mixed into the proxy's mux.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/relaylb/relaylb/internal/adapter/events"
	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/core/ports"
	"github.com/relaylb/relaylb/internal/logger"
	"github.com/relaylb/relaylb/pkg/format"
)

type routeEntry struct {
	path   string
	method string
	desc   string
}

// Server is relaylb's admin HTTP surface.
type Server struct {
	groups    ports.GroupManager
	collector *events.Collector
	forwards  []domain.Forward
	token     string
	logger    *logger.StyledLogger

	routes []routeEntry
	mux    *http.ServeMux
}

// New builds the admin server. token, if non-empty, gates every
// /api/v1/* route behind a "Bearer <token>" Authorization header.
func New(groups ports.GroupManager, collector *events.Collector, forwards []domain.Forward, token string, log *logger.StyledLogger) *Server {
	s := &Server{
		groups:    groups,
		collector: collector,
		forwards:  forwards,
		token:     token,
		logger:    log,
		mux:       http.NewServeMux(),
	}
	s.register("/health", http.MethodGet, "liveness probe", s.handleHealth, false)
	s.register("/metrics", http.MethodGet, "Prometheus text exposition", s.handleMetrics, false)
	s.register("/api/v1/forwards", http.MethodGet, "list configured forwards", s.handleForwards, true)
	s.register("/api/v1/upstream-groups", http.MethodGet, "list upstream groups", s.handleListGroups, true)
	s.register("/api/v1/upstream-groups/", http.MethodPatch, "patch a group's member list", s.handlePatchGroup, true)
	s.register("/api/v1/upstreams", http.MethodGet, "list upstreams", s.handleListUpstreams, true)
	s.register("/api/v1/upstreams", http.MethodPost, "create an upstream", s.handleCreateUpstream, true)
	s.register("/api/v1/upstreams/", http.MethodPut, "update an upstream", s.handleUpdateUpstream, true)
	s.register("/api/v1/upstreams/", http.MethodDelete, "delete an upstream", s.handleDeleteUpstream, true)
	s.logRoutesTable()
	return s
}

func (s *Server) register(path, method, desc string, handler http.HandlerFunc, gated bool) {
	s.routes = append(s.routes, routeEntry{path: path, method: method, desc: desc})
	wrapped := handler
	if gated {
		wrapped = s.requireToken(handler)
	}
	s.mux.HandleFunc(method+" "+path, wrapped)
}

// Handler returns the admin server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" || got != s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) logRoutesTable() {
	if len(s.routes) == 0 {
		return
	}
	tableData := [][]string{{"ROUTE", "METHOD", "DESCRIPTION"}}
	for _, r := range s.routes {
		tableData = append(tableData, []string{r.path, r.method, r.desc})
	}
	tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	fmt.Print(tableString)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := format.Duration(s.collector.Uptime())
	if len(s.groups.ListGroups()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no groups loaded", "uptime": uptime})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "uptime": uptime})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = s.collector.WritePrometheus(w)
}

func (s *Server) handleForwards(w http.ResponseWriter, r *http.Request) {
	type forwardView struct {
		Name         string `json:"name"`
		BindAddress  string `json:"bind_address"`
		Port         int    `json:"port"`
		DefaultGroup string `json:"default_group"`
	}
	out := make([]forwardView, 0, len(s.forwards))
	for _, f := range s.forwards {
		out = append(out, forwardView{Name: f.Name, BindAddress: f.BindAddress, Port: f.Port, DefaultGroup: f.DefaultGroup})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.groups.ListGroups()
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handlePatchGroup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/upstream-groups/")
	if name == "" {
		http.Error(w, "group name required", http.StatusBadRequest)
		return
	}
	var body struct {
		Members []domain.Member   `json:"members"`
		Client  *clientConfigBody `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Members != nil {
		if err := s.groups.ReplaceGroupUpstreams(name, body.Members); err != nil {
			writeMutationError(w, err)
			return
		}
	}
	if body.Client != nil {
		cc, err := body.Client.toClientConfig()
		if err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.groups.UpdateGroupClient(name, cc); err != nil {
			writeMutationError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// clientConfigBody is the wire shape accepted by the PATCH group route's
// "client" field; mirrors config.ClientConfigYAML's fields but JSON-tagged,
// since domain.ClientConfig carries no JSON tags and its OutboundProxyURL
// is a *url.URL that cannot be unmarshaled from a plain JSON string.
type clientConfigBody struct {
	UserAgent        string           `json:"user_agent"`
	KeepaliveSeconds int              `json:"keepalive_seconds"`
	Stream           bool             `json:"stream"`
	ConnectTimeout   time.Duration    `json:"connect_timeout"`
	RequestTimeout   time.Duration    `json:"request_timeout"`
	IdleTimeout      time.Duration    `json:"idle_timeout"`
	Retry            *retryPolicyBody `json:"retry,omitempty"`
	OutboundProxyURL string           `json:"outbound_proxy_url,omitempty"`
}

type retryPolicyBody struct {
	Attempts         int `json:"attempts"`
	InitialBackoffMS int `json:"initial_backoff_ms"`
}

func (b clientConfigBody) toClientConfig() (domain.ClientConfig, error) {
	// net.Dialer.KeepAlive's zero value enables OS-default probing, not
	// disables it; an unset (zero) keepalive_seconds must map to a
	// negative duration to actually turn keepalive off.
	keepalive := time.Duration(b.KeepaliveSeconds) * time.Second
	if b.KeepaliveSeconds == 0 {
		keepalive = -1
	}
	cc := domain.ClientConfig{
		UserAgent: b.UserAgent,
		Keepalive: keepalive,
		Stream:    b.Stream,
		Timeouts: domain.Timeouts{
			Connect: b.ConnectTimeout,
			Request: b.RequestTimeout,
			Idle:    b.IdleTimeout,
		},
	}
	if b.Retry != nil {
		cc.Retry = &domain.RetryPolicy{Attempts: b.Retry.Attempts, InitialBackoffMS: b.Retry.InitialBackoffMS}
	}
	if b.OutboundProxyURL != "" {
		u, err := url.Parse(b.OutboundProxyURL)
		if err != nil {
			return cc, fmt.Errorf("invalid outbound_proxy_url: %w", err)
		}
		cc.OutboundProxyURL = u
	}
	return cc, nil
}

// upstreamBody is the wire shape accepted by the create/update routes and
// returned by every upstream-facing response: domain.Upstream carries its
// URL as a parsed *url.URL, which encoding/json can marshal but not
// unmarshal from a plain string, so the admin surface talks this
// stringly-typed shape instead and converts at the boundary.
type upstreamBody struct {
	Name      string               `json:"name"`
	URL       string               `json:"url"`
	Auth      domain.Auth          `json:"auth"`
	Headers   []domain.HeaderOp    `json:"headers"`
	Breaker   domain.BreakerConfig `json:"breaker"`
	RateLimit *domain.RateLimit    `json:"rate_limit,omitempty"`
}

func toUpstreamBody(u *domain.Upstream) upstreamBody {
	return upstreamBody{
		Name:      u.Name,
		URL:       u.URL.String(),
		Auth:      u.Auth,
		Headers:   u.Headers,
		Breaker:   u.Breaker,
		RateLimit: u.RateLimit,
	}
}

func (b upstreamBody) toUpstream() (*domain.Upstream, error) {
	u, err := url.Parse(b.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	return &domain.Upstream{
		Name:      b.Name,
		URL:       u,
		Auth:      b.Auth,
		Headers:   b.Headers,
		Breaker:   b.Breaker,
		RateLimit: b.RateLimit,
	}, nil
}

func (s *Server) handleListUpstreams(w http.ResponseWriter, r *http.Request) {
	upstreams := s.groups.ListUpstreams()
	sort.Slice(upstreams, func(i, j int) bool { return upstreams[i].Name < upstreams[j].Name })
	out := make([]upstreamBody, 0, len(upstreams))
	for _, u := range upstreams {
		out = append(out, toUpstreamBody(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUpstream(w http.ResponseWriter, r *http.Request) {
	var body upstreamBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	u, err := body.toUpstream()
	if err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.groups.CreateUpstream(u); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUpstreamBody(u))
}

func (s *Server) handleUpdateUpstream(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/upstreams/")
	var body upstreamBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	u, err := body.toUpstream()
	if err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.groups.UpdateUpstream(name, u); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpstreamBody(u))
}

func (s *Server) handleDeleteUpstream(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/upstreams/")
	if err := s.groups.DeleteUpstream(name); err != nil {
		writeMutationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMutationError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch err.(type) {
	case *domain.DependencyViolationError:
		status = http.StatusConflict
	case *domain.ConfigInvalidError:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
