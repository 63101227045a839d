// Package version carries the build identification stamped in by the
// linker. Release builds set these with
//
//	go build -ldflags "-X github.com/banshee-data/uartlink/internal/version.Version=v1.2.3"
//
// and likewise for GitSHA and BuildTime. Unstamped binaries report
// themselves as dev builds.
package version

import "fmt"

var (
	// Version is the release tag, or "dev" when not stamped.
	Version = "dev"

	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// String renders the build identification the way the CLIs print it.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
