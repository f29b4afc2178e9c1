//go:build windows

package executor

import (
	"context"
	"os/exec"
	"strconv"
)

func shellCommand(ctx context.Context, shellCmd string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", shellCmd)
}

func setProcessGroup(cmd *exec.Cmd) {
	// Windows has no process groups in the POSIX sense; taskkill /T below
	// terminates the tree instead.
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
