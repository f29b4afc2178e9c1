package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns the vibe-kanban data directory.
// Uses VIBE_KANBAN_DATA_DIR env var if set, otherwise ~/.vibe-kanban
func DataDir() string {
	if dir := os.Getenv("VIBE_KANBAN_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vibe-kanban")
}

// ProfilesPath returns the path to the user-editable profiles file.
func ProfilesPath() string {
	return filepath.Join(DataDir(), "profiles.json")
}

// ConfigPath returns the path to the persisted settings document.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// ExpandTilde expands a leading ~ or ~/ in path to the user's home directory.
// Paths without a leading tilde are returned unchanged.
func ExpandTilde(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
