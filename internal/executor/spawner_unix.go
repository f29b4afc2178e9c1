//go:build !windows

package executor

import (
	"context"
	"os/exec"
	"syscall"
)

func shellCommand(ctx context.Context, shellCmd string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", shellCmd)
}

// setProcessGroup puts the child in its own process group so the whole tree
// can be signaled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the child's process group, falling back to the
// child itself if the group signal fails.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
