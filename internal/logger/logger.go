// Package logger builds relaylb's structured logger: slog handlers fanned
// out to a colourised terminal writer and/or a rotated JSON log file.
// Grounded on the teacher's internal/logger/logger.go (pterm-backed
// terminal handler, lumberjack file rotation, a fan-out multi-handler for
// running both at once).
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relaylb/relaylb/internal/util"
	"github.com/relaylb/relaylb/theme"
)

// Config configures the logger's handlers.
type Config struct {
	Level      string
	Theme      string
	PrettyLogs bool

	FileOutput bool
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const defaultLogFileName = "relaylb.log"

// New builds the base slog.Logger and returns a cleanup func that closes
// any open log file.
func New(cfg Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	appTheme := theme.GetTheme(cfg.Theme)

	var cleanups []func()
	var handlers []slog.Handler

	if cfg.PrettyLogs {
		handlers = append(handlers, createTerminalHandler(level, appTheme))
	} else {
		handlers = append(handlers, createJSONHandler(level, os.Stdout))
	}

	if cfg.FileOutput {
		handler, cleanup, err := createFileHandler(cfg, level)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, handler)
		cleanups = append(cleanups, cleanup)
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = &simpleMultiHandler{handlers: handlers}
	}

	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}
	return slog.New(h), cleanup, nil
}

func createTerminalHandler(level slog.Level, appTheme *theme.Theme) slog.Handler {
	if !util.ShouldUseColors() {
		return createJSONHandler(level, os.Stdout)
	}

	plogger := pterm.DefaultLogger.
		WithLevel(convertToPTermLevel(level)).
		WithWriter(os.Stdout).
		WithFormatter(pterm.LogFormatterColorful)

	plogger = plogger.WithKeyStyles(map[string]pterm.Style{
		"level": *appTheme.Info,
		"msg":   *appTheme.Info,
		"time":  *appTheme.Muted,
	})
	return pterm.NewSlogHandler(plogger)
}

func createJSONHandler(level slog.Level, w *os.File) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: fastReplaceAttr})
}

func createFileHandler(cfg Config, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, defaultLogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level, ReplaceAttr: fastReplaceAttr})
	return handler, func() { _ = rotator.Close() }, nil
}

func fastReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "timestamp", Value: slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05.000Z07:00"))}
	}
	if a.Value.Kind() == slog.KindString && strings.ContainsRune(a.Value.String(), '\x1b') {
		return slog.Attr{Key: a.Key, Value: slog.StringValue(stripAnsi(a.Value.String()))}
	}
	return a
}

func stripAnsi(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// simpleMultiHandler fans a record out to every handler that accepts its
// level, without double-wrapping attrs.
type simpleMultiHandler struct {
	handlers []slog.Handler
}

func (m *simpleMultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *simpleMultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record); err != nil {
				return fmt.Errorf("log handler: %w", err)
			}
		}
	}
	return nil
}

func (m *simpleMultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &simpleMultiHandler{handlers: next}
}

func (m *simpleMultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &simpleMultiHandler{handlers: next}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertToPTermLevel(level slog.Level) pterm.LogLevel {
	switch level {
	case slog.LevelDebug:
		return pterm.LogLevelTrace
	case slog.LevelWarn:
		return pterm.LogLevelWarn
	case slog.LevelError:
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
