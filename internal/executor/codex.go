package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// Codex launches the OpenAI Codex CLI in exec mode. Codex exec has no
// resumable sessions, so follow-ups are not supported.
type Codex struct {
	Cmd     command.Builder
	Spawner Spawner
}

func (c *Codex) Kind() Kind { return KindCodex }

func (c *Codex) Command() command.Builder { return c.Cmd }

func (c *Codex) Spawn(ctx context.Context, dir, prompt string) (Process, error) {
	return c.Spawner.Start(ctx, dir, c.Cmd.BuildInitial(), strings.NewReader(prompt))
}

func (c *Codex) SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (Process, error) {
	return nil, fmt.Errorf("%w: codex exec has no resumable sessions", ErrFollowUpNotSupported)
}

func (c *Codex) NormalizeLogs(store LogStore, dir string) {
	go driveNormalizer(store, NormalizeCodexLine)
}
