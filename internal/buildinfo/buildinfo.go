// Package buildinfo carries the version metadata stamped into the
// inkbroker binary at release time. It is reported on startup and by the
// health endpoint so a desktop client can tell which broker build it is
// talking to.
package buildinfo

// Set with -ldflags "-X github.com/inkdesk/inkbroker/internal/buildinfo.Version=..."
// at build time; the zero values identify a local development build.
var (
	// Version is the release tag of the binary.
	Version = "dev"

	// Commit is the short git commit the binary was built from.
	Commit = "none"

	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
