// Package buildinfo carries values stamped in at link time.
package buildinfo

var (
	// Version is set with -ldflags "-X torrplay.app/player/internal/buildinfo.Version=...".
	Version = "dev"

	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
