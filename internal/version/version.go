// Package version holds relaylb's build metadata and a short startup
// banner. Grounded on the teacher's internal/version package for the
// idea (print name/version/commit once at startup) but not its ASCII
// art splash, which is specific to that project's branding.
package version

import (
	"fmt"
	"runtime"

	"github.com/relaylb/relaylb/theme"
)

// Set via -ldflags at build time; these defaults are for `go run`.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Print writes a short one-block startup banner to stdout.
func Print() {
	fmt.Println(theme.ColourSplash("relaylb") + " " + theme.ColourVersion(Version))
	fmt.Printf("commit %s, built %s, %s\n", Commit, BuildDate, runtime.Version())
}
