// Package util holds small terminal/environment helpers shared by the
// logger and CLI. Adapted from the teacher's internal/util/term.go.
package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColors decides whether styled output should be emitted,
// honouring the usual NO_COLOR/FORCE_COLOR conventions plus an
// application-specific override.
func ShouldUseColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}
	if forced := os.Getenv("RELAYLB_FORCE_COLORS"); forced != "" {
		return strings.ToLower(forced) == "true"
	}
	return IsTerminal()
}
