//go:build windows

package daemon

import (
	"bytes"
	"os/exec"
	"strconv"
	"strings"
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
	pidStr := strconv.Itoa(pid)

	// Try wmic first (available on most Windows versions)
	if cmdLine := getCommandLineWmic(pidStr); cmdLine != "" {
		return classifyCommandLine(cmdLine)
	}

	// Fall back to PowerShell Get-CimInstance (Win11 and newer without wmic)
	if cmdLine := getCommandLinePowerShell(pidStr); cmdLine != "" {
		return classifyCommandLine(cmdLine)
	}

	return processUnknown
}

// getCommandLineWmic tries to get process command line via wmic.
// Returns empty string on failure or if no command line data.
func getCommandLineWmic(pidStr string) string {
	cmd := exec.Command("wmic", "process", "where", "ProcessId="+pidStr, "get", "commandline")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	// wmic output has header line "CommandLine" followed by data
	trimmed := strings.TrimSpace(string(output))
	trimmed = strings.TrimPrefix(trimmed, "CommandLine")
	return strings.TrimSpace(trimmed)
}

// getCommandLinePowerShell tries to get process command line via PowerShell.
// Returns empty string on failure or if no command line data.
func getCommandLinePowerShell(pidStr string) string {
	// Get-CimInstance is the modern replacement for wmic. Force UTF-8 output
	// to avoid UTF-16LE encoding issues when capturing stdout.
	script := `[Console]::OutputEncoding=[Text.Encoding]::UTF8;` +
		`(Get-CimInstance Win32_Process -Filter "ProcessId=` + pidStr + `").CommandLine`
	cmd := exec.Command("powershell", "-NoProfile", "-Command", script)
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	result := strings.TrimSpace(string(output))
	return strings.ReplaceAll(result, "\x00", "")
}

// classifyCommandLine determines process identity from command line string.
func classifyCommandLine(cmdLine string) processIdentity {
	cmdLine = strings.ReplaceAll(cmdLine, "\x00", "")
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return processUnknown
	}
	if strings.Contains(strings.ToLower(cmdLine), "vkd") {
		return processIsDaemon
	}
	return processNotDaemon
}

// killProcess kills a process by PID on Windows.
// Returns true only if the process is confirmed dead.
// Verifies the process is a vkd daemon before killing to prevent killing
// unrelated processes if the PID was reused.
func killProcess(pid int) bool {
	if !processExists(pid) {
		return true // Already dead
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

	cmd := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F")
	_ = cmd.Run() // Ignore error - we'll verify with processExists

	// Wait for process to fully terminate
	for i := 0; i < 10; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processExists(pid) {
			return true
		}
	}

	return false
}

// processExists checks if a process with the given PID exists.
// Uses tasklist with CSV output which is locale-independent.
func processExists(pid int) bool {
	// tasklist /FI "PID eq N" /FO CSV /NH returns exit code 0 whether or not
	// the process is found; a found process shows up as a CSV line with the
	// quoted PID as a field.
	pidStr := strconv.Itoa(pid)
	cmd := exec.Command("tasklist", "/FI", "PID eq "+pidStr, "/FO", "CSV", "/NH")
	output, err := cmd.Output()
	if err != nil {
		// tasklist failed - assume process might exist to be safe
		return true
	}

	quotedPID := []byte("\"" + pidStr + "\"")
	return len(output) > 0 && bytes.Contains(output, quotedPID)
}
