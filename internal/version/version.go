// Package version carries build metadata stamped in with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

// Stamped by the release build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// IsDev reports whether the binary was built without a release stamp.
func IsDev() bool { return Version == "dev" }

// Full is the one-line banner printed by `slotbook version`.
func Full() string {
	switch {
	case IsDev():
		return "slotbook version dev (built from source)"
	case Commit == "" || Commit == "none":
		return "slotbook version " + Version
	default:
		return fmt.Sprintf("slotbook version %s (%s)", Version, Commit)
	}
}

// UserAgent identifies the CLI to the booking API, including the platform
// so server logs can tell clients apart.
func UserAgent() string {
	return fmt.Sprintf("slotbook-cli/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
