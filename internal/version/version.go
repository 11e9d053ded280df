// Package version exposes build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Name is the service name reported by the API and logs.
const Name = "noisestream"

// Build metadata, set via -ldflags "-X github.com/smazurov/noisestream/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a one-line version banner, e.g. "noisestream dev (unknown)".
func String() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, GitCommit)
}
