package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/relaylb/relaylb/internal/core/ports"
	"github.com/relaylb/relaylb/theme"
)

// StyledLogger wraps slog.Logger with theme-aware helpers for the handful
// of events worth colouring: breaker transitions and upstream selection
// failures. Adapted from the teacher's internal/logger/styled.go, trimmed
// to relaylb's domain (breaker state instead of endpoint health).
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger wraps an existing slog.Logger with a theme.
func NewStyledLogger(l *slog.Logger, t *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: l, theme: t}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// InfoWithUpstream prefixes msg with a highlighted upstream name.
func (sl *StyledLogger) InfoWithUpstream(msg, upstream string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, pterm.Style(*sl.theme.Highlight).Sprint(upstream)), args...)
}

// WarnWithUpstream is InfoWithUpstream at warn level.
func (sl *StyledLogger) WarnWithUpstream(msg, upstream string, args ...any) {
	sl.logger.Warn(fmt.Sprintf("%s %s", msg, pterm.Style(*sl.theme.Highlight).Sprint(upstream)), args...)
}

// BreakerTransition logs a circuit breaker state change, coloured by the
// state it's entering.
func (sl *StyledLogger) BreakerTransition(upstream string, from, to ports.BreakerStateTag) {
	colour := sl.theme.BreakerClosed
	switch to {
	case ports.BreakerOpen:
		colour = sl.theme.BreakerOpen
	case ports.BreakerHalfOpen:
		colour = sl.theme.BreakerHalfOpen
	}
	styled := pterm.NewStyle(colour, pterm.Bold).Sprint(to.String())
	sl.logger.Info(fmt.Sprintf("breaker %s: %s -> %s", pterm.Style(*sl.theme.Highlight).Sprint(upstream), from.String(), styled))
}
