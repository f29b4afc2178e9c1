package executor

import (
	"context"
	"strings"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// ClaudeCode launches the Claude Code CLI. Supports plan mode and follow-up
// runs that resume a prior session.
type ClaudeCode struct {
	Cmd     command.Builder
	Plan    bool
	Spawner Spawner
}

func (c *ClaudeCode) Kind() Kind { return KindClaudeCode }

func (c *ClaudeCode) Command() command.Builder { return c.Cmd }

func (c *ClaudeCode) initialCommand() string {
	if c.Plan {
		return c.Cmd.BuildFollowUp([]string{"--permission-mode=plan"})
	}
	return c.Cmd.BuildInitial()
}

func (c *ClaudeCode) Spawn(ctx context.Context, dir, prompt string) (Process, error) {
	return c.Spawner.Start(ctx, dir, c.initialCommand(), strings.NewReader(prompt))
}

func (c *ClaudeCode) SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (Process, error) {
	extra := []string{"--resume=" + sessionID}
	if c.Plan {
		extra = append(extra, "--permission-mode=plan")
	}
	shellCmd := c.Cmd.BuildFollowUp(extra)
	return c.Spawner.Start(ctx, dir, shellCmd, strings.NewReader(prompt))
}

func (c *ClaudeCode) NormalizeLogs(store LogStore, dir string) {
	go driveNormalizer(store, NormalizeClaudeLine)
}
