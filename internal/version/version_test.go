package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name        string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "false"},
				{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
			},
			wantVersion: "dev-20260301",
			wantCommit:  "0123456",
		},
		{
			name: "dirty tree",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantVersion: "",
			wantCommit:  "abc-dirty",
		},
		{
			name:        "no vcs info",
			settings:    nil,
			wantVersion: "",
			wantCommit:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit := Version, Commit
			defer func() { Version, Commit = oldVersion, oldCommit }()
			Version, Commit = "", ""

			fromSettings(tt.settings)

			if Version != tt.wantVersion {
				t.Errorf("Version = %v, want %v", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %v, want %v", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFromSettings_KeepsLdflags(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()
	Version, Commit = "v1.0.0", "feedbee"

	fromSettings([]debug.BuildSetting{{Key: "vcs.revision", Value: "0000000000"}})

	if Version != "v1.0.0" || Commit != "feedbee" {
		t.Errorf("fromSettings overwrote ldflags values: %v %v", Version, Commit)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Get() = %+v, want populated version and commit", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Get().Platform = %v, want os/arch", info.Platform)
	}
	if !strings.Contains(Full(), info.Commit) {
		t.Errorf("Full() = %v, want commit %v", Full(), info.Commit)
	}
}
