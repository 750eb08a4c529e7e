// Package version holds build information for the editor and the CLI.
package version

import "fmt"

// Set with -ldflags "-X molina/internal/version.Version=..." at release time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the build information on one line.
func String() string {
	return fmt.Sprintf("v%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
