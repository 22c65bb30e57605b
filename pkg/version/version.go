// Package version holds build-time identifiers, overridden via -ldflags
// the same way matchlock's cmd/matchlock/cmd_version.go reports them.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
