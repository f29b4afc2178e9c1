package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// Opencode launches the OpenCode CLI in run mode. No session resumption.
type Opencode struct {
	Cmd     command.Builder
	Spawner Spawner
}

func (o *Opencode) Kind() Kind { return KindOpencode }

func (o *Opencode) Command() command.Builder { return o.Cmd }

func (o *Opencode) Spawn(ctx context.Context, dir, prompt string) (Process, error) {
	return o.Spawner.Start(ctx, dir, o.Cmd.BuildInitial(), strings.NewReader(prompt))
}

func (o *Opencode) SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (Process, error) {
	return nil, fmt.Errorf("%w: opencode has no resumable sessions", ErrFollowUpNotSupported)
}

func (o *Opencode) NormalizeLogs(store LogStore, dir string) {
	go driveNormalizer(store, NormalizeOpencodeLine)
}
