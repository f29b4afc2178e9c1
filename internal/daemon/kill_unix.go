//go:build !windows

package daemon

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// processIdentity represents the result of identifying a process.
type processIdentity int

const (
	processUnknown   processIdentity = iota // Can't determine identity
	processIsDaemon                         // Confirmed vkd daemon
	processNotDaemon                        // Confirmed NOT vkd daemon
)

// identifyProcess checks if a process is a vkd daemon.
// This prevents killing unrelated processes if a PID was reused.
var identifyProcess = identifyProcessImpl

func identifyProcessImpl(pid int) processIdentity {
	// Try reading /proc/<pid>/cmdline (Linux)
	cmdline, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err == nil {
		// cmdline uses null bytes as separators
		cmdStr := strings.TrimSpace(strings.ReplaceAll(string(cmdline), "\x00", " "))
		if cmdStr == "" {
			// Empty cmdline (e.g., kernel thread or permission issue) - unknown
			return processUnknown
		}
		return classifyCommandLine(cmdStr)
	}

	// Fall back to ps (macOS/BSD)
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "command=")
	output, err := cmd.Output()
	if err != nil {
		return processUnknown
	}
	cmdStr := strings.TrimSpace(string(output))
	if cmdStr == "" {
		return processUnknown
	}
	return classifyCommandLine(cmdStr)
}

// classifyCommandLine determines process identity from a command line. The
// daemon binary is vkd, so the first token must be vkd or a path ending in
// /vkd.
func classifyCommandLine(cmdStr string) processIdentity {
	fields := strings.Fields(cmdStr)
	if len(fields) == 0 {
		return processUnknown
	}
	bin := fields[0]
	if bin == "vkd" || strings.HasSuffix(bin, "/vkd") {
		return processIsDaemon
	}
	return processNotDaemon
}

// killProcess kills a process by PID on Unix systems.
// Returns true only if the process is confirmed dead.
// Verifies the process is a vkd daemon before killing to prevent killing
// unrelated processes if the PID was reused.
func killProcess(pid int) bool {
	// os.FindProcess on Unix never returns an error, it always succeeds
	process, _ := os.FindProcess(pid)

	// Check if process is alive first using signal 0
	if err := process.Signal(syscall.Signal(0)); err != nil {
		// EPERM means process exists but we can't signal it (different user)
		if errors.Is(err, syscall.EPERM) {
			return false
		}
		// ESRCH or other errors mean process doesn't exist
		return true
	}

	switch identifyProcess(pid) {
	case processNotDaemon:
		// PID was reused, daemon is gone
		return true
	case processUnknown:
		// Can't determine identity - be conservative, don't kill
		return false
	case processIsDaemon:
	}

	// First try SIGTERM for graceful shutdown
	if err := process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.EPERM) {
			return false
		}
		if err := process.Signal(syscall.Signal(0)); err != nil && !errors.Is(err, syscall.EPERM) {
			return true
		}
		return false
	}

	// Wait up to 2 seconds for graceful shutdown
	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			if errors.Is(err, syscall.EPERM) {
				return false
			}
			return true
		}
	}

	// Still alive, use SIGKILL
	_ = process.Signal(syscall.SIGKILL)

	// Wait and verify death
	for i := 0; i < 5; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			if errors.Is(err, syscall.EPERM) {
				return false
			}
			return true
		}
	}

	return false
}
