// Package config holds build information shared by slate-server and slatectl.
package config

import (
	"fmt"
	"runtime"
)

// Build information, set with -ldflags "-X github.com/good-yellow-bee/slate/pkg/config.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// VersionString formats the build information for the named binary.
func VersionString(binary string) string {
	info := GetBuildInfo()
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s)",
		binary, info.Version, info.Commit, info.BuildTime, info.GoVersion, info.Platform)
}
