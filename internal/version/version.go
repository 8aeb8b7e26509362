// Package version holds build metadata injected via -ldflags.
package version

var (
	// Version is the semantic release version.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
)
