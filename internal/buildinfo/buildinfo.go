// Package buildinfo carries build-time identification, injected via -ldflags.
package buildinfo

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)
