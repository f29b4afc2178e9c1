package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// Gemini launches the Gemini CLI. The CLI has no session-resume mechanism,
// so follow-ups are not supported.
type Gemini struct {
	Cmd     command.Builder
	Spawner Spawner
}

func (g *Gemini) Kind() Kind { return KindGemini }

func (g *Gemini) Command() command.Builder { return g.Cmd }

func (g *Gemini) Spawn(ctx context.Context, dir, prompt string) (Process, error) {
	return g.Spawner.Start(ctx, dir, g.Cmd.BuildInitial(), strings.NewReader(prompt))
}

func (g *Gemini) SpawnFollowUp(ctx context.Context, dir, prompt, sessionID string) (Process, error) {
	return nil, fmt.Errorf("%w: gemini has no resumable sessions", ErrFollowUpNotSupported)
}

func (g *Gemini) NormalizeLogs(store LogStore, dir string) {
	go driveNormalizer(store, NormalizeGenericLine)
}
