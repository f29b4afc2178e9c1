package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mlicam/vibe-kanban/internal/daemon"
)

// daemonBinary locates the vkd binary: next to the current executable first,
// then on PATH.
func daemonBinary() string {
	name := "vkd"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return name
}

// ensureDaemon checks if the daemon is running, starting it if not.
func ensureDaemon() error {
	if info, err := daemon.GetRunningDaemon(); err == nil && daemon.IsDaemonAlive(info.Addr) {
		return nil
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Daemon not running, starting vkd...")
	}

	cmd := exec.Command(daemonBinary())
	// Detach: the daemon must outlive this CLI invocation
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start vkd: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("detach vkd: %w", err)
	}

	// Wait for the runtime file to appear and the daemon to answer
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := daemon.GetRunningDaemon(); err == nil && daemon.IsDaemonAlive(info.Addr) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become ready")
}

// daemonClient ensures the daemon is up and returns a client for it. The
// address comes from the runtime file, falling back to the --server flag.
func daemonClient() (daemon.Client, error) {
	if err := ensureDaemon(); err != nil {
		return nil, err
	}
	c, err := daemon.NewHTTPClientFromRuntime()
	if err != nil {
		return daemon.NewHTTPClient(serverAddr), nil
	}
	return c, nil
}
