package config

import (
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version = "1.2.3"
	Commit = "abc123"

	got := VersionString("slatectl")
	for _, want := range []string{"slatectl 1.2.3", "commit abc123"} {
		if !strings.Contains(got, want) {
			t.Errorf("VersionString() = %q, missing %q", got, want)
		}
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("GetBuildInfo() = %+v", info)
	}
}
