//go:build !windows

package daemon

import "testing"

func TestClassifyCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		cmdLine string
		want    processIdentity
	}{
		{"bare binary", "vkd", processIsDaemon},
		{"installed path", "/usr/local/bin/vkd", processIsDaemon},
		{"with flags", "/usr/local/bin/vkd -addr 127.0.0.1:8440", processIsDaemon},
		{"cli binary", "/usr/local/bin/vk daemon start", processNotDaemon},
		{"suffix but different binary", "/usr/local/bin/notvkd", processNotDaemon},
		{"unrelated process", "/usr/bin/vim", processNotDaemon},
		{"vkd as an argument", "grep vkd /var/log/syslog", processNotDaemon},
		{"empty string", "", processUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyCommandLine(tt.cmdLine); got != tt.want {
				t.Errorf("classifyCommandLine(%q) = %v, want %v", tt.cmdLine, got, tt.want)
			}
		})
	}
}

func TestKillProcessDeadPID(t *testing.T) {
	// PID 0 signals the caller's process group; use a PID that is extremely
	// unlikely to exist instead.
	if !killProcess(99999999) {
		t.Error("expected killProcess to report a nonexistent PID as dead")
	}
}
