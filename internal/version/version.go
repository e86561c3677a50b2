// Package version provides build version information for clipseek.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit hash of the build.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Info holds version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("clipseek %s (%s, built %s, %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// String returns the human-readable version line for the current build.
func String() string {
	return Get().String()
}

// JSON returns the version information as a JSON document.
func JSON() string {
	b, err := json.MarshalIndent(Get(), "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"version": %q}`, Version)
	}
	return string(b)
}
