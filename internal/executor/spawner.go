package executor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Process is a handle to a running agent process group.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error
	// Kill terminates the whole process group.
	Kill() error
	// Stdout is the process's standard output stream.
	Stdout() io.Reader
	// Stderr is the process's standard error stream.
	Stderr() io.Reader
	// PID returns the process ID.
	PID() int
}

// Spawner launches a shell command string in a working directory and returns
// a handle to the running child process group. Supervision, cancellation and
// retry of the child are the caller's responsibility.
type Spawner interface {
	Start(ctx context.Context, dir, shellCmd string, stdin io.Reader) (Process, error)
}

// shellSpawner runs commands through the system shell so that multi-word
// bases like "npx -y @anthropic-ai/claude-code@latest" work verbatim.
type shellSpawner struct{}

// DefaultSpawner returns the shell-based process launcher.
func DefaultSpawner() Spawner {
	return shellSpawner{}
}

func (shellSpawner) Start(ctx context.Context, dir, shellCmd string, stdin io.Reader) (Process, error) {
	if strings.TrimSpace(shellCmd) == "" {
		return nil, fmt.Errorf("empty command")
	}

	cmd := shellCommand(ctx, shellCmd)
	cmd.Dir = dir
	cmd.Stdin = stdin
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", shellCmd, err)
	}

	return &shellProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type shellProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *shellProcess) Wait() error { return p.cmd.Wait() }

func (p *shellProcess) Kill() error { return killProcessGroup(p.cmd) }

func (p *shellProcess) Stdout() io.Reader { return p.stdout }

func (p *shellProcess) Stderr() io.Reader { return p.stderr }

func (p *shellProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
