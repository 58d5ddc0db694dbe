// Package app wires together everything cmd/relaylb needs at runtime:
// the group registry, one HTTP listener per configured Forward, and the
// admin listener, with ordered startup and graceful shutdown.
//
// Grounded on the teacher's internal/app.Application (config+logger+
// registry+service fields, a buffered error channel fed by background
// listen goroutines, Start/Stop pairing) generalised from olla's single
// listener to relaylb's one-listener-per-forward model.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/relaylb/relaylb/internal/adapter/events"
	"github.com/relaylb/relaylb/internal/adapter/proxy"
	"github.com/relaylb/relaylb/internal/adapter/registry"
	"github.com/relaylb/relaylb/internal/admin"
	"github.com/relaylb/relaylb/internal/config"
	"github.com/relaylb/relaylb/internal/adapter/router"
	"github.com/relaylb/relaylb/internal/core/domain"
	"github.com/relaylb/relaylb/internal/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Application owns every forward listener plus the admin listener.
type Application struct {
	cfg       *config.File
	logger    *logger.StyledLogger
	baseLog   *slog.Logger
	registry  *registry.Registry
	collector *events.Collector

	forwardServers []*http.Server
	adminServer    *http.Server

	errCh chan error
}

// New builds an Application from a loaded, validated config.File. It
// materialises every upstream and group into a fresh registry and
// builds (but does not start) every forward's and the admin's
// http.Server.
func New(cfg *config.File, baseLog *slog.Logger, styled *logger.StyledLogger) (*Application, error) {
	collector := events.NewCollector()
	reg := registry.New(collector, styled)

	if err := config.Materialize(cfg, reg); err != nil {
		return nil, fmt.Errorf("materialising config: %w", err)
	}

	forwards := config.Forwards(cfg)

	a := &Application{
		cfg:       cfg,
		logger:    styled,
		baseLog:   baseLog,
		registry:  reg,
		collector: collector,
		errCh:     make(chan error, len(forwards)+1),
	}

	for _, fwd := range forwards {
		server, err := a.buildForwardServer(fwd)
		if err != nil {
			return nil, err
		}
		a.forwardServers = append(a.forwardServers, server)
	}

	a.adminServer = a.buildAdminServer(forwards)

	return a, nil
}

func (a *Application) buildForwardServer(fwd domain.Forward) (*http.Server, error) {
	rt, err := router.Build(fwd.Routes)
	if err != nil {
		return nil, fmt.Errorf("forward %q: %w", fwd.Name, err)
	}

	pipeline := proxy.New(fwd, rt.Match, a.registry, a.collector, a.logger)

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", fwd.BindAddress, fwd.Port),
		Handler: pipeline,
	}, nil
}

func (a *Application) buildAdminServer(forwards []domain.Forward) *http.Server {
	token := adminToken(a.cfg.AdminServer.TokenEnvVar)
	srv := admin.New(a.registry, a.collector, forwards, token, a.logger)
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.AdminServer.BindAddress, a.cfg.AdminServer.Port),
		Handler: srv.Handler(),
	}
}

// Start brings up every forward listener and the admin listener.
// Listener errors (other than a clean shutdown) are surfaced on errCh.
func (a *Application) Start(ctx context.Context) error {
	for _, server := range a.forwardServers {
		srv := server
		a.logger.Info("starting forward listener", "addr", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.errCh <- fmt.Errorf("forward listener %s: %w", srv.Addr, err)
			}
		}()
	}

	a.logger.Info("starting admin listener", "addr", a.adminServer.Addr)
	go func() {
		if err := a.adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("admin listener %s: %w", a.adminServer.Addr, err)
		}
	}()

	return nil
}

// Errors returns the channel background listeners report fatal errors on.
func (a *Application) Errors() <-chan error {
	return a.errCh
}

// Stop gracefully shuts down every listener within defaultShutdownTimeout.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	var firstErr error
	for _, server := range a.forwardServers {
		if err := server.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.adminServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func adminToken(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
