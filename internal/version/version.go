// Package version reports the build metadata of the reelforge binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Injected by release builds:
//
//	go build -ldflags "-X github.com/example/reelforge/internal/version.Version=v1.2.0 \
//	  -X github.com/example/reelforge/internal/version.Commit=$(git rev-parse HEAD) \
//	  -X github.com/example/reelforge/internal/version.BuildTime=$(date -u +%FT%TZ)"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info is the build metadata served by `reelforge version` and /healthz.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

var readBuildInfo = debug.ReadBuildInfo

// Get returns the build metadata. Fields not injected at link time fall back
// to the module and VCS stamps the Go toolchain embeds.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()}

	if bi, ok := readBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// String returns the one-line build description.
func String() string {
	info := Get()
	commit := info.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if info.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("reelforge %s (commit %s, built %s, %s)", info.Version, commit, info.BuildTime, info.GoVersion)
}
