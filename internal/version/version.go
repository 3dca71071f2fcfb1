// Package version holds release information stamped into the cbir tools.
package version

import "fmt"

// Set with -ldflags "-X cbir-engine/internal/version.Version=..." at release.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by -version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
