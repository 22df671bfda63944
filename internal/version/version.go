// Package version exposes build-time version information for hwenc.
//
// Version, Commit, and Date are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/hwenc/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/hwenc/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/hwenc/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	// Version is the semantic version, or "dev" for untagged builds.
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "hwenc"

// Info is the structured version record.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo collects the build and runtime version fields.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() (string, bool) {
	if Commit == "unknown" || len(Commit) < 8 {
		return "", false
	}
	return Commit[:8], true
}

// String returns the long human-readable version line.
func String() string {
	info := GetInfo()
	if sha, ok := shortCommit(); ok {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, sha, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)",
		ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the compact form used for --version output.
func Short() string {
	if sha, ok := shortCommit(); ok {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, sha)
	}
	return fmt.Sprintf("%s %s", ApplicationName, Version)
}

// JSON renders the version record as an indented JSON document.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// IsRelease reports whether this binary came from a tagged release build.
func IsRelease() bool {
	return Version != "dev"
}
