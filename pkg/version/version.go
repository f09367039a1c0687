// Package version holds build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata. Release builds set these with
// -ldflags "-X github.com/Sumatoshi-tech/modtest/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// String formats the build metadata for "modtest version".
func String() string {
	return fmt.Sprintf("modtest %s (commit: %s, built: %s)", Version, commit(), Date)
}

// commit falls back to the VCS revision stamped by the Go toolchain.
func commit() string {
	if Commit != "<unknown>" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return setting.Value
		}
	}

	return Commit
}
