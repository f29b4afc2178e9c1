package executor

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// LogEntry is a single normalized line of agent output.
type LogEntry struct {
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
	Type      string    `json:"type"` // "text", "tool", "error"
}

// LogStore is the external sink an executor drives normalization against.
// It exposes the agent's raw output stream and accepts normalized entries.
type LogStore interface {
	// SubscribeRaw returns a channel of raw output lines and a cancel
	// function. The channel closes when the raw stream ends.
	SubscribeRaw() (<-chan string, func())
	// Append stores a normalized entry.
	Append(entry LogEntry)
}

// Normalizer converts one raw agent output line to a normalized entry,
// or nil to drop the line.
type Normalizer func(line string) *LogEntry

// driveNormalizer consumes the raw stream and appends normalized entries
// until the stream closes. Callers run it in a goroutine.
func driveNormalizer(store LogStore, normalize Normalizer) {
	lines, cancel := store.SubscribeRaw()
	defer cancel()
	for line := range lines {
		if entry := normalize(line); entry != nil {
			entry.Timestamp = time.Now()
			store.Append(*entry)
		}
	}
}

// ansiEscapePattern matches ANSI escape sequences (colors, cursor movement, etc.)
var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\]([^\x07\x1b]|\x1b[^\\])*(\x07|\x1b\\)`)

// claudeNoisePatterns are status messages from the Claude CLI that aren't
// useful progress info
var claudeNoisePatterns = []string{
	"mcp startup:",
	"Initializing",
	"Connected to",
	"Session started",
}

func isClaudeNoise(line string) bool {
	for _, pattern := range claudeNoisePatterns {
		if strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}

// NormalizeClaudeLine parses Claude's stream-json format and extracts
// readable content.
func NormalizeClaudeLine(line string) *LogEntry {
	line = strings.TrimSpace(line)
	if line == "" || isClaudeNoise(line) {
		return nil
	}

	var msg struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype,omitempty"`
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Result    string `json:"result,omitempty"`
		SessionID string `json:"session_id,omitempty"`
		Name      string `json:"name,omitempty"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		// Not JSON - shouldn't happen with Claude, pass through as text
		return &LogEntry{Text: stripANSI(line), Type: "text"}
	}

	switch msg.Type {
	case "assistant":
		if msg.Message.Content != "" {
			return &LogEntry{Text: collapseNewlines(msg.Message.Content), Type: "text"}
		}
		return nil
	case "result":
		if msg.Result != "" {
			return &LogEntry{Text: collapseNewlines(msg.Result), Type: "text"}
		}
		return nil
	case "tool_use":
		if msg.Name != "" {
			return &LogEntry{Text: "[Tool: " + msg.Name + "]", Type: "tool"}
		}
		return nil
	case "tool_result":
		return &LogEntry{Text: "[Tool completed]", Type: "tool"}
	case "system":
		if msg.Subtype == "init" && msg.SessionID != "" {
			return &LogEntry{Text: "[Session: " + msg.SessionID + "]", Type: "text"}
		}
		return nil
	case "error":
		return &LogEntry{Text: "[Error in stream]", Type: "error"}
	default:
		// Lifecycle and delta events - skip to avoid noise
		return nil
	}
}

// NormalizeCodexLine parses codex's --json JSONL format.
func NormalizeCodexLine(line string) *LogEntry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var ev struct {
		Type string `json:"type"`
		Item struct {
			Type    string `json:"type,omitempty"`
			Text    string `json:"text,omitempty"`
			Command string `json:"command,omitempty"`
		} `json:"item,omitempty"`
	}
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return &LogEntry{Text: sanitizeControl(line), Type: "text"}
	}

	switch ev.Type {
	case "item.completed":
		switch ev.Item.Type {
		case "agent_message":
			if ev.Item.Text != "" {
				return &LogEntry{Text: sanitizeControl(ev.Item.Text), Type: "text"}
			}
		case "command_execution":
			if ev.Item.Command != "" {
				return &LogEntry{Text: "[Command: " + sanitizeControl(ev.Item.Command) + "]", Type: "tool"}
			}
			return &LogEntry{Text: "[Command completed]", Type: "tool"}
		case "file_change":
			return &LogEntry{Text: "[File change]", Type: "tool"}
		}
		return nil
	case "item.started":
		if ev.Item.Type == "command_execution" && ev.Item.Command != "" {
			return &LogEntry{Text: "[Command: " + sanitizeControl(ev.Item.Command) + "]", Type: "tool"}
		}
		return nil
	case "turn.failed", "error":
		return &LogEntry{Text: "[Error in stream]", Type: "error"}
	default:
		return nil
	}
}

// NormalizeAmpLine parses amp's --format=jsonl output.
func NormalizeAmpLine(line string) *LogEntry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var msg struct {
		Type    string `json:"type"`
		Content string `json:"content,omitempty"`
		Tool    string `json:"tool,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return &LogEntry{Text: stripANSI(line), Type: "text"}
	}

	switch msg.Type {
	case "assistant", "message", "text":
		if msg.Content != "" {
			return &LogEntry{Text: collapseNewlines(msg.Content), Type: "text"}
		}
		return nil
	case "tool_use", "tool":
		if msg.Tool != "" {
			return &LogEntry{Text: "[Tool: " + msg.Tool + "]", Type: "tool"}
		}
		return &LogEntry{Text: "[Tool call]", Type: "tool"}
	case "error":
		if msg.Error != "" {
			return &LogEntry{Text: sanitizeControl(msg.Error), Type: "error"}
		}
		return &LogEntry{Text: "[Error in stream]", Type: "error"}
	default:
		return nil
	}
}

// NormalizeOpencodeLine normalizes OpenCode output (plain text with ANSI codes).
func NormalizeOpencodeLine(line string) *LogEntry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if isToolCallJSON(line) {
		return &LogEntry{Text: "[Tool call]", Type: "tool"}
	}
	text := stripANSI(line)
	if text == "" {
		return nil
	}
	return &LogEntry{Text: text, Type: "text"}
}

// NormalizeGenericLine is the default normalizer for agents without a
// structured output format.
func NormalizeGenericLine(line string) *LogEntry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	text := stripANSI(line)
	if text == "" {
		return nil
	}
	if isToolCallJSON(text) {
		return &LogEntry{Text: "[Tool call]", Type: "tool"}
	}
	return &LogEntry{Text: text, Type: "text"}
}

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	return ansiEscapePattern.ReplaceAllString(s, "")
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}

// sanitizeControl strips ANSI escapes and non-printable control characters,
// replacing newlines with spaces. Used for untrusted subprocess output that
// reaches terminals.
func sanitizeControl(s string) string {
	s = stripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isToolCallJSON checks if a line is a tool call JSON object.
// Tool calls have exactly "name" and "arguments" keys.
func isToolCallJSON(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return false
	}
	if len(m) != 2 {
		return false
	}
	_, hasName := m["name"]
	_, hasArgs := m["arguments"]
	return hasName && hasArgs
}
