package settings

import (
	"fmt"
	"os/exec"
	"strings"
)

// EditorType selects which external editor to launch for config files.
type EditorType string

const (
	EditorVSCode   EditorType = "vscode"
	EditorCursor   EditorType = "cursor"
	EditorWindsurf EditorType = "windsurf"
	EditorIntelliJ EditorType = "intellij"
	EditorZed      EditorType = "zed"
	EditorCustom   EditorType = "custom"
)

var editorCommands = map[EditorType]string{
	EditorVSCode:   "code",
	EditorCursor:   "cursor",
	EditorWindsurf: "windsurf",
	EditorIntelliJ: "idea",
	EditorZed:      "zed",
}

// EditorConfig describes the user's preferred editor.
type EditorConfig struct {
	EditorType    EditorType `json:"editor_type"`
	CustomCommand *string    `json:"custom_command,omitempty"`
}

// OpenFile launches the configured editor on path. The editor process is
// detached; its lifetime is not supervised.
func (e EditorConfig) OpenFile(path string) error {
	var parts []string
	if e.EditorType == EditorCustom {
		if e.CustomCommand == nil || strings.TrimSpace(*e.CustomCommand) == "" {
			return fmt.Errorf("custom editor selected but no command configured")
		}
		parts = strings.Fields(*e.CustomCommand)
	} else {
		cmd, ok := editorCommands[e.EditorType]
		if !ok {
			return fmt.Errorf("unknown editor type: %s", e.EditorType)
		}
		parts = []string{cmd}
	}

	args := append(parts[1:], path)
	cmd := exec.Command(parts[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch editor %s: %w", parts[0], err)
	}
	// Reap the editor process in the background so it doesn't become a zombie.
	go cmd.Wait()
	return nil
}
