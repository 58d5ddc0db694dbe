// Package theme provides the colour palette the styled logger and the
// startup banner use for terminal output. Adapted from the teacher's
// theme package, trimmed to the styles relaylb actually reaches for and
// extended with breaker-state colouring in place of endpoint health.
package theme

import (
	"github.com/pterm/pterm"
)

// Theme defines the colour scheme used across terminal output.
type Theme struct {
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style

	Highlight *pterm.Style
	Muted     *pterm.Style
	Numbers   *pterm.Style

	BreakerClosed   pterm.Color
	BreakerOpen     pterm.Color
	BreakerHalfOpen pterm.Color
}

// Default returns the default application theme.
func Default() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgLightBlue),
		Info:  pterm.NewStyle(pterm.FgGreen),
		Warn:  pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		Error: pterm.NewStyle(pterm.FgRed, pterm.Bold),

		Highlight: pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Numbers:   pterm.NewStyle(pterm.FgMagenta),

		BreakerClosed:   pterm.FgGreen,
		BreakerOpen:     pterm.FgRed,
		BreakerHalfOpen: pterm.FgYellow,
	}
}

// Dark returns a dark-terminal variant.
func Dark() *Theme {
	t := Default()
	t.Debug = pterm.NewStyle(pterm.FgLightBlue)
	t.Info = pterm.NewStyle(pterm.FgLightGreen)
	t.Warn = pterm.NewStyle(pterm.FgLightYellow, pterm.Bold)
	t.Error = pterm.NewStyle(pterm.FgLightRed, pterm.Bold)
	t.Highlight = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	return t
}

// Light returns a light-terminal variant.
func Light() *Theme {
	t := Default()
	t.Debug = pterm.NewStyle(pterm.FgBlue)
	t.Info = pterm.NewStyle(pterm.FgBlack)
	t.Highlight = pterm.NewStyle(pterm.FgBlue, pterm.Bold)
	return t
}

// GetTheme resolves a theme by name, defaulting to Default for anything
// unrecognised.
func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	case "light":
		return Light()
	default:
		return Default()
	}
}

// ColourSplash colours the startup banner's product name.
func ColourSplash(message ...any) string {
	return pterm.LightGreen(message...)
}

// ColourVersion colours the startup banner's version string.
func ColourVersion(message ...any) string {
	return pterm.LightYellow(message...)
}
