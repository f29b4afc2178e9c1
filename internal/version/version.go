package version

import (
	"runtime/debug"
	"strings"
)

// Version is the build version. Set via -ldflags for releases; development
// builds fall back to the git revision recorded by the Go toolchain.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	Version = fromVCS()
}

func fromVCS() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision == "" {
		return "dev"
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified {
		revision += "-dirty"
	}
	return revision
}

// Full returns the version plus the VCS commit time when available.
func Full() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}

	parts := []string{Version}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.time" {
			parts = append(parts, setting.Value)
			break
		}
	}
	return strings.Join(parts, " ")
}
