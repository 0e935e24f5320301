// Package version records build metadata, stamped in at link time via
// -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a single human-readable version line.
func String() string {
	return fmt.Sprintf("drivesense %s (%s, built %s)", Version, GitSHA, BuildTime)
}
