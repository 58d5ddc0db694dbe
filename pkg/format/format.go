// Package format holds small human-readable formatting helpers; the admin
// server's /health uptime field uses Duration. Trimmed from the teacher's
// pkg/format/format.go down to the helpers relaylb actually calls.
package format

import (
	"fmt"
	"time"
)

// Duration formats a duration in compact h/m/s units, dropping fractions
// of a second; a duration under one second keeps time.Duration's own form
// (e.g. "250ms").
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Latency formats a millisecond latency value.
func Latency(ms int64) string {
	if ms == 0 {
		return "0ms"
	}
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000.0)
	}
	return fmt.Sprintf("%dms", ms)
}

// Percentage formats a 0-100 ratio.
func Percentage(value float64) string {
	if value == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", value)
}
