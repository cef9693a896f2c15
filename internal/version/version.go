// Package version holds the release version stamped into logs and the CLI.
package version

// Current is overridden at build time with
// -ldflags "-X github.com/shpitdev/stakeholder-profiler/internal/version.Current=x.y.z".
var Current = "0.3.0"
