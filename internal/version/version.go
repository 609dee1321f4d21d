// Package version holds build metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/dilepton/internal/version.Version=v0.3.0" ./cmd/dilepton-select
package version

import "fmt"

var (
	// Version is the release tag of the selector
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the metadata for -version output and run logs.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
