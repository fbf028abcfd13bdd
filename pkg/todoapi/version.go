package todoapi

import (
	"fmt"
	"runtime"
)

const (
	Version    = "0.3.0"
	APIVersion = "v1"
)

// BuildInfo is filled in by the release build through SetBuildInfo
var BuildInfo = struct {
	Version    string
	APIVersion string
	GitCommit  string
	BuildDate  string
	GoVersion  string
}{
	Version:    Version,
	APIVersion: APIVersion,
	GoVersion:  runtime.Version(),
}

// SetBuildInfo records the commit and build date of the binary
func SetBuildInfo(commit, date string) {
	BuildInfo.GitCommit = commit
	BuildInfo.BuildDate = date
}

// VersionInfo returns a one line version string
func VersionInfo() string {
	return fmt.Sprintf("todoapi %s (API %s)", BuildInfo.Version, BuildInfo.APIVersion)
}

// FullVersionInfo returns version, Go runtime and, when known, commit and build date
func FullVersionInfo() string {
	info := fmt.Sprintf("todoapi %s\n", BuildInfo.Version)
	info += fmt.Sprintf("API Version: %s\n", BuildInfo.APIVersion)
	info += fmt.Sprintf("Go Version: %s\n", BuildInfo.GoVersion)

	if BuildInfo.GitCommit != "" {
		info += fmt.Sprintf("Git Commit: %s\n", BuildInfo.GitCommit)
	}
	if BuildInfo.BuildDate != "" {
		info += fmt.Sprintf("Build Date: %s\n", BuildInfo.BuildDate)
	}
	return info
}
