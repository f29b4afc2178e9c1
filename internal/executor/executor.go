package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// Sentinel errors for executor resolution and spawning.
var (
	// ErrFollowUpNotSupported is returned when a follow-up is requested on an
	// agent kind without a resumable-session mechanism.
	ErrFollowUpNotSupported = errors.New("follow-up is not supported")
	// ErrUnknownExecutor is returned when a kind tag does not match any
	// supported agent.
	ErrUnknownExecutor = errors.New("unknown executor type")
	// ErrMCPNotSupported is returned when an MCP operation is requested on an
	// agent kind without MCP support.
	ErrMCPNotSupported = errors.New("executor does not support MCP servers")
)

// Kind identifies one of the supported external coding-agent CLIs.
type Kind string

const (
	KindClaudeCode Kind = "claude-code"
	KindAmp        Kind = "amp"
	KindGemini     Kind = "gemini"
	KindCodex      Kind = "codex"
	KindOpencode   Kind = "opencode"
)

// ConfigFormat is the on-disk format of an agent's native config file.
type ConfigFormat string

const (
	FormatJSON ConfigFormat = "json"
	FormatTOML ConfigFormat = "toml"
)

// facts holds the static, compiled-in description of an agent kind: where
// MCP server registrations live in its config file, the file format, and
// how to locate the file. Kept as a table rather than per-call branching so
// the five kinds cannot drift.
type facts struct {
	mcpPath    []string
	flatKey    bool // two-segment path stored as one dot-joined top-level key
	format     ConfigFormat
	configPath func() (string, error)
}

var kindFacts = map[Kind]facts{
	KindClaudeCode: {
		mcpPath: []string{"mcpServers"},
		format:  FormatJSON,
		configPath: func() (string, error) {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, ".claude.json"), nil
		},
	},
	KindAmp: {
		mcpPath: []string{"amp", "mcpServers"},
		flatKey: true, // amp's settings file has no nested tables here
		format:  FormatJSON,
		configPath: func() (string, error) {
			cfg, err := os.UserConfigDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(cfg, "amp", "settings.json"), nil
		},
	},
	KindGemini: {
		mcpPath: []string{"mcpServers"},
		format:  FormatJSON,
		configPath: func() (string, error) {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, ".gemini", "settings.json"), nil
		},
	},
	KindCodex: {
		mcpPath: []string{"mcp_servers"},
		format:  FormatTOML,
		configPath: func() (string, error) {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, ".codex", "config.toml"), nil
		},
	},
	KindOpencode: {
		mcpPath: []string{"mcp"},
		format:  FormatJSON,
		configPath: func() (string, error) {
			cfg, err := os.UserConfigDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(cfg, "opencode", "opencode.json"), nil
		},
	},
}

// Kinds returns all supported agent kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindClaudeCode, KindAmp, KindGemini, KindCodex, KindOpencode}
}

// ParseKind converts a string tag to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindFacts[k]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExecutor, s)
	}
	return k, nil
}

// Valid reports whether k is a supported agent kind.
func (k Kind) Valid() bool {
	_, ok := kindFacts[k]
	return ok
}

// MCPAttributePath returns the key path where MCP server registrations live
// in the kind's config file, or nil if the kind does not support MCP.
func (k Kind) MCPAttributePath() []string {
	return kindFacts[k].mcpPath
}

// SupportsMCP reports whether the kind supports MCP server registration.
func (k Kind) SupportsMCP() bool {
	return kindFacts[k].mcpPath != nil
}

// UsesFlatKey reports whether the kind stores its two-segment MCP path as a
// single dot-joined top-level key instead of nested objects.
func (k Kind) UsesFlatKey() bool {
	return kindFacts[k].flatKey
}

// ConfigFormat returns the on-disk format of the kind's config file.
func (k Kind) ConfigFormat() ConfigFormat {
	return kindFacts[k].format
}

// DefaultConfigPath returns the default location of the kind's config file.
func (k Kind) DefaultConfigPath() (string, error) {
	f, ok := kindFacts[k]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExecutor, string(k))
	}
	return f.configPath()
}

// AgentConfig is the serialized form of a concrete agent instance inside a
// profile: the kind tag, its launch command, and run-time parameters.
type AgentConfig struct {
	Kind    Kind            `json:"kind"`
	Command command.Builder `json:"command"`
	// Plan restricts claude-code to plan mode (no file modifications).
	// Ignored by other kinds.
	Plan bool `json:"plan,omitempty"`
}

// Executor is the uniform capability contract implemented by each agent
// kind: launch an initial run, resume a session, and drive normalization of
// the agent's raw output into structured log entries.
type Executor interface {
	// Kind returns the agent kind identity.
	Kind() Kind

	// Spawn launches the agent in dir with the given prompt (delivered on
	// stdin) and returns a handle to the running process group.
	Spawn(ctx context.Context, dir, prompt string) (Process, error)

	// SpawnFollowUp resumes the session identified by sessionID. Returns
	// ErrFollowUpNotSupported for kinds without session resumption.
	SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (Process, error)

	// NormalizeLogs attaches normalization of the agent's raw output stream
	// in store to structured entries. It returns immediately; normalization
	// runs until the raw stream is closed.
	NormalizeLogs(store LogStore, dir string)

	// Command returns the launch command builder for this instance.
	Command() command.Builder
}

// New constructs the concrete executor for cfg using the default
// shell-based spawner.
func New(cfg AgentConfig) (Executor, error) {
	return NewWithSpawner(cfg, DefaultSpawner())
}

// NewWithSpawner constructs the concrete executor for cfg with an explicit
// process-launching facility.
func NewWithSpawner(cfg AgentConfig, sp Spawner) (Executor, error) {
	switch cfg.Kind {
	case KindClaudeCode:
		return &ClaudeCode{Cmd: cfg.Command, Plan: cfg.Plan, Spawner: sp}, nil
	case KindAmp:
		return &Amp{Cmd: cfg.Command, Spawner: sp}, nil
	case KindGemini:
		return &Gemini{Cmd: cfg.Command, Spawner: sp}, nil
	case KindCodex:
		return &Codex{Cmd: cfg.Command, Spawner: sp}, nil
	case KindOpencode:
		return &Opencode{Cmd: cfg.Command, Spawner: sp}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, string(cfg.Kind))
	}
}
