// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders the build metadata on one line for logs.
func String() string {
	return fmt.Sprintf("pairwatch %s (commit %s, built %s)", Version, Commit, BuildDate)
}
