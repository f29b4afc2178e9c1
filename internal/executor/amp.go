package executor

import (
	"context"
	"strings"

	"github.com/mlicam/vibe-kanban/internal/command"
)

// Amp launches the Sourcegraph Amp CLI. Follow-ups resume an existing
// thread via "threads continue".
type Amp struct {
	Cmd     command.Builder
	Spawner Spawner
}

func (a *Amp) Kind() Kind { return KindAmp }

func (a *Amp) Command() command.Builder { return a.Cmd }

func (a *Amp) Spawn(ctx context.Context, dir, prompt string) (Process, error) {
	return a.Spawner.Start(ctx, dir, a.Cmd.BuildInitial(), strings.NewReader(prompt))
}

func (a *Amp) SpawnFollowUp(ctx context.Context, dir, prompt, threadID string) (Process, error) {
	// amp resumes a thread with "threads continue <id>"; the params from the
	// initial command (output format etc.) still apply and come last.
	resume := command.Builder{
		Base:   a.Cmd.Base + " threads continue " + threadID,
		Params: a.Cmd.Params,
	}
	return a.Spawner.Start(ctx, dir, resume.BuildInitial(), strings.NewReader(prompt))
}

func (a *Amp) NormalizeLogs(store LogStore, dir string) {
	go driveNormalizer(store, NormalizeAmpLine)
}
