// Package version holds the build version of dfctl.
package version

import "fmt"

var (
	// Version is the main version number. It is overridden at build time
	// with -ldflags "-X .../internal/version.Version=...".
	Version = "0.1.0"

	// GitCommit is the git commit the binary was built from.
	GitCommit = ""
)

// FullVersion returns the version with the commit appended when known.
func FullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
