package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mlicam/vibe-kanban/internal/paths"
)

// RuntimeInfo stores daemon runtime state
type RuntimeInfo struct {
	PID     int    `json:"pid"`
	Addr    string `json:"addr"`
	Port    int    `json:"port"`
	Version string `json:"version"`
}

// RuntimePath returns the path to the runtime info file
func RuntimePath() string {
	return filepath.Join(paths.DataDir(), "daemon.json")
}

// WriteRuntime saves the daemon runtime info
func WriteRuntime(addr string, port int, version string) error {
	info := RuntimeInfo{
		PID:     os.Getpid(),
		Addr:    addr,
		Port:    port,
		Version: version,
	}

	path := RuntimePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadRuntime reads the daemon runtime info
func ReadRuntime() (*RuntimeInfo, error) {
	data, err := os.ReadFile(RuntimePath())
	if err != nil {
		return nil, err
	}

	var info RuntimeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// RemoveRuntime removes the runtime info file
func RemoveRuntime() {
	os.Remove(RuntimePath())
}

// GetRunningDaemon returns info about the running daemon, or os.ErrNotExist
// when no runtime file is present. The returned daemon may be unresponsive;
// callers should check with IsDaemonAlive.
func GetRunningDaemon() (*RuntimeInfo, error) {
	info, err := ReadRuntime()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		// Corrupted file - remove it
		RemoveRuntime()
		return nil, os.ErrNotExist
	}
	return info, nil
}

// IsDaemonAlive checks if a daemon at the given address is actually responding.
// This is more reliable than checking PID and works cross-platform.
func IsDaemonAlive(addr string) bool {
	if addr == "" {
		return false
	}
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/health", addr))
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// KillDaemon attempts to gracefully shut down a daemon, then force kill if needed.
// Returns true if the daemon was killed or is no longer running.
func KillDaemon(info *RuntimeInfo) bool {
	if info == nil {
		return true
	}

	// First try graceful HTTP shutdown
	if info.Addr != "" {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Post(fmt.Sprintf("http://%s/api/shutdown", info.Addr), "application/json", nil)
		if err == nil {
			resp.Body.Close()
			// Wait for graceful shutdown
			for i := 0; i < 10; i++ {
				time.Sleep(200 * time.Millisecond)
				if !IsDaemonAlive(info.Addr) {
					RemoveRuntime()
					return true
				}
			}
		}
	}

	// HTTP shutdown failed or timed out, try OS-level kill
	if info.PID > 0 {
		if killProcess(info.PID) {
			RemoveRuntime()
			return true
		}
	}

	return false
}

// FindAvailablePort finds an available port starting from the requested
// address. Port 0 asks the OS for any free port.
func FindAvailablePort(startAddr string) (string, int, error) {
	host := "127.0.0.1"
	port := 8440

	if startAddr != "" {
		parts := strings.Split(startAddr, ":")
		if len(parts) == 2 {
			host = parts[0]
			if p, err := strconv.Atoi(parts[1]); err == nil {
				port = p
			}
		}
	}

	if port == 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:0", host))
		if err != nil {
			return "", 0, err
		}
		addr := ln.Addr().String()
		p := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		return addr, p, nil
	}

	// Try ports starting from the configured one
	for i := 0; i < 100; i++ {
		addr := fmt.Sprintf("%s:%d", host, port+i)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return addr, port + i, nil
		}
	}

	return "", 0, fmt.Errorf("no available port found starting from %d", port)
}

// WritePortFile writes the daemon's port to a well-known file under the
// system temp dir when ENABLE_PORT_FILE is set. External tooling polls the
// file to discover the server address.
func WritePortFile(port int) error {
	if os.Getenv("ENABLE_PORT_FILE") == "" {
		return nil
	}
	dir := filepath.Join(os.TempDir(), "vibe-kanban")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "vibe-kanban.port"), []byte(strconv.Itoa(port)), 0644)
}
