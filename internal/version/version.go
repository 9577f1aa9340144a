// Package version carries build identification, populated at link time
// via -ldflags "-X".
package version

import "fmt"

var (
	// Version is the current release version.
	Version = "dev"
	// GitSHA is the git commit SHA of the build.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identification on one line.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
