package daemon

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindAvailablePort(t *testing.T) {
	addr, port, err := FindAvailablePort("127.0.0.1:8440")
	if err != nil {
		t.Fatalf("FindAvailablePort failed: %v", err)
	}
	if addr == "" {
		t.Error("expected non-empty address")
	}
	if port < 8440 {
		t.Errorf("expected port >= 8440, got %d", port)
	}
}

func TestFindAvailablePortZeroAsksOS(t *testing.T) {
	addr, port, err := FindAvailablePort("127.0.0.1:0")
	if err != nil {
		t.Fatalf("FindAvailablePort failed: %v", err)
	}
	if port == 0 {
		t.Error("expected a concrete port")
	}
	if !strings.HasPrefix(addr, "127.0.0.1:") {
		t.Errorf("unexpected addr %q", addr)
	}
}

func TestRuntimeInfoReadWrite(t *testing.T) {
	t.Setenv("VIBE_KANBAN_DATA_DIR", t.TempDir())

	if err := WriteRuntime("127.0.0.1:8440", 8440, "test-version"); err != nil {
		t.Fatalf("WriteRuntime failed: %v", err)
	}

	info, err := ReadRuntime()
	if err != nil {
		t.Fatalf("ReadRuntime failed: %v", err)
	}
	if info.Addr != "127.0.0.1:8440" {
		t.Errorf("expected addr '127.0.0.1:8440', got %q", info.Addr)
	}
	if info.Port != 8440 {
		t.Errorf("expected port 8440, got %d", info.Port)
	}
	if info.PID != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), info.PID)
	}
	if info.Version != "test-version" {
		t.Errorf("expected version 'test-version', got %q", info.Version)
	}

	RemoveRuntime()
	if _, err := ReadRuntime(); err == nil {
		t.Error("expected error after RemoveRuntime")
	}
}

func TestGetRunningDaemonCleansCorruptFile(t *testing.T) {
	t.Setenv("VIBE_KANBAN_DATA_DIR", t.TempDir())

	path := RuntimePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := GetRunningDaemon(); err == nil {
		t.Error("expected error for corrupt runtime file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected corrupt runtime file to be removed")
	}
}

func TestIsDaemonAlive(t *testing.T) {
	if IsDaemonAlive("") {
		t.Error("empty addr should not be alive")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	if !IsDaemonAlive(addr) {
		t.Error("expected daemon at test server to be alive")
	}

	ts.Close()
	if IsDaemonAlive(addr) {
		t.Error("expected closed server to be dead")
	}
}

func TestWritePortFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("ENABLE_PORT_FILE", "")
		if err := WritePortFile(8440); err != nil {
			t.Fatalf("WritePortFile failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(os.TempDir(), "vibe-kanban", "vibe-kanban.port")); !os.IsNotExist(err) {
			t.Error("port file should not exist when disabled")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		t.Setenv("ENABLE_PORT_FILE", "1")
		if err := WritePortFile(8525); err != nil {
			t.Fatalf("WritePortFile failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(os.TempDir(), "vibe-kanban", "vibe-kanban.port"))
		if err != nil {
			t.Fatalf("read port file: %v", err)
		}
		if string(data) != "8525" {
			t.Errorf("expected port file to contain 8525, got %q", data)
		}
	})
}
