// Package version holds the release version reported by the daemon and CLI.
package version

// Version is overridable at build time with
// -ldflags "-X github.com/alverad/inout/pkg/version.Version=...".
var Version = "0.1.0"
