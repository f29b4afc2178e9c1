package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mlicam/vibe-kanban/internal/command"
	"github.com/mlicam/vibe-kanban/internal/executor"
	"github.com/mlicam/vibe-kanban/internal/paths"
	"github.com/mlicam/vibe-kanban/internal/profile"
	"github.com/mlicam/vibe-kanban/internal/settings"
	"github.com/mlicam/vibe-kanban/internal/storage"
)

// fakeProcess is a canned agent process whose output is a fixed set of lines.
type fakeProcess struct {
	stdout io.Reader
	stderr io.Reader
	err    error
}

func (p *fakeProcess) Wait() error       { return p.err }
func (p *fakeProcess) Kill() error       { return nil }
func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }
func (p *fakeProcess) PID() int          { return 4242 }

// fakeSpawner records the commands it is asked to run and hands back canned
// processes instead of launching anything.
type fakeSpawner struct {
	mu       sync.Mutex
	cmds     []string
	dirs     []string
	stdout   string
	spawnErr error
	waitErr  error
}

func (f *fakeSpawner) Start(ctx context.Context, dir, shellCmd string, stdin io.Reader) (executor.Process, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, shellCmd)
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	return &fakeProcess{
		stdout: strings.NewReader(f.stdout),
		stderr: strings.NewReader(""),
		err:    f.waitErr,
	}, nil
}

func (f *fakeSpawner) lastCmd() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cmds) == 0 {
		return ""
	}
	return f.cmds[len(f.cmds)-1]
}

// newTestServer builds a server on a temp data dir with a fake spawner and
// returns it with an httptest frontend.
func newTestServer(t *testing.T, spawner *fakeSpawner) (*Server, *httptest.Server) {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("VIBE_KANBAN_DATA_DIR", dataDir)

	db, err := storage.Open(filepath.Join(dataDir, "runs.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := settings.NewStore(paths.ConfigPath())
	s := NewServer(db, store, "127.0.0.1:0", "test")
	if spawner != nil {
		s.spawner = spawner
	}
	// The process-wide cached collection latches whichever data dir the
	// first test used; reload against this test's dir.
	s.profiles = profile.Load()

	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func putJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var health map[string]any
	resp := getJSON(t, ts.URL+"/api/health", &health)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if health["status"] != "ok" {
		t.Errorf("expected status ok, got %v", health["status"])
	}
	if health["version"] != "test" {
		t.Errorf("expected version test, got %v", health["version"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var info struct {
		Executors []string `json:"executors"`
		DataDir   string   `json:"data_dir"`
	}
	resp := getJSON(t, ts.URL+"/api/info", &info)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(info.Executors) != 5 {
		t.Errorf("expected 5 executors, got %v", info.Executors)
	}
	if info.DataDir == "" {
		t.Error("expected data_dir to be set")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var cfg settings.Config
	getJSON(t, ts.URL+"/api/config", &cfg)
	if cfg.Profile.Profile != "claude-code" {
		t.Fatalf("expected default profile claude-code, got %q", cfg.Profile.Profile)
	}

	cfg.Theme = "dark"
	cfg.Profile = profile.NewSelectorWithVariant("claude-code", "plan")

	var updated settings.Config
	resp := putJSON(t, ts.URL+"/api/config", cfg, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if updated.Theme != "dark" {
		t.Errorf("expected theme dark, got %q", updated.Theme)
	}
	if updated.Profile.Variant == nil || *updated.Profile.Variant != "plan" {
		t.Errorf("expected variant plan, got %v", updated.Profile.Variant)
	}
	if updated.ConfigVersion != settings.CurrentVersion {
		t.Errorf("expected version %s, got %s", settings.CurrentVersion, updated.ConfigVersion)
	}
}

func TestConfigRejectsUnknownProfile(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var cfg settings.Config
	getJSON(t, ts.URL+"/api/config", &cfg)
	cfg.Profile = profile.NewSelector("no-such-tool")

	resp := putJSON(t, ts.URL+"/api/config", cfg, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown profile, got %d", resp.StatusCode)
	}
}

func TestProfilesGetAndPut(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var coll profile.Collection
	getJSON(t, ts.URL+"/api/profiles", &coll)
	if coll.Get("claude-code") == nil {
		t.Fatal("expected claude-code in default profiles")
	}

	// Override claude-code wholesale via the user file
	override := profile.Collection{Profiles: []profile.Profile{{
		Label: "claude-code",
		Agent: executor.AgentConfig{
			Kind:    executor.KindClaudeCode,
			Command: coll.Get("claude-code").Agent.Command.WithParams("--custom-flag"),
		},
	}}}

	var merged profile.Collection
	resp := putJSON(t, ts.URL+"/api/profiles", override, &merged)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := merged.Get("claude-code")
	if p == nil {
		t.Fatal("claude-code missing after merge")
	}
	if len(p.Variants) != 0 {
		t.Error("wholesale replace should drop variants not present in the override")
	}
	if !strings.Contains(p.Agent.Command.BuildInitial(), "--custom-flag") {
		t.Errorf("override params not applied: %s", p.Agent.Command.BuildInitial())
	}

	// Other defaults survive the overlay
	if merged.Get("codex") == nil {
		t.Error("expected codex to survive user overlay")
	}
}

func TestRunResolutionUsesLoadedCollection(t *testing.T) {
	spawner := &fakeSpawner{}
	s, ts := newTestServer(t, spawner)

	// A parseable user profiles file replaces the defaults wholesale.
	user := &profile.Collection{Profiles: []profile.Profile{{
		Label: "mine",
		Agent: profile.Defaults().Get("claude-code").Agent,
	}}}
	if err := profile.SaveUser(user); err != nil {
		t.Fatal(err)
	}
	// As if the daemon had started after the user file was written.
	s.profiles = profile.Load()

	workdir := t.TempDir()

	resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Profile: "claude-code", Prompt: "hi", Workdir: workdir,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("claude-code should not resolve when the user file replaced it, got %d", resp.StatusCode)
	}

	var run storage.Run
	resp = postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Profile: "mine", Prompt: "hi", Workdir: workdir,
	}, &run)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for user-defined profile, got %d", resp.StatusCode)
	}
}

func TestProfileEditsRequireRestart(t *testing.T) {
	spawner := &fakeSpawner{}
	s, ts := newTestServer(t, spawner)

	// Replace claude-code's command through the editing surface.
	override := profile.Collection{Profiles: []profile.Profile{{
		Label: "claude-code",
		Agent: executor.AgentConfig{
			Kind:    executor.KindClaudeCode,
			Command: command.New("claude-custom").WithParams("-p"),
		},
	}}}
	resp := putJSON(t, ts.URL+"/api/profiles", override, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The editing surface reflects the write immediately.
	var merged profile.Collection
	getJSON(t, ts.URL+"/api/profiles", &merged)
	if got := merged.Get("claude-code").Agent.Command.Base; got != "claude-custom" {
		t.Errorf("merged view base = %q, want claude-custom", got)
	}

	// Run resolution still uses the collection loaded at startup.
	var run storage.Run
	resp = postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Profile: "claude-code", Prompt: "hi", Workdir: t.TempDir(),
	}, &run)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if cmd := spawner.lastCmd(); strings.Contains(cmd, "claude-custom") {
		t.Errorf("spawn used the edited command before restart: %q", cmd)
	}

	// A fresh load, as after a restart, picks the edit up.
	s.profiles = profile.Load()
	resp = postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Profile: "claude-code", Prompt: "hi", Workdir: t.TempDir(),
	}, &run)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 after reload, got %d", resp.StatusCode)
	}
	if cmd := spawner.lastCmd(); !strings.Contains(cmd, "claude-custom") {
		t.Errorf("spawn after reload should use the edited command, got %q", cmd)
	}
}

func TestMCPConfigRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, nil)

	cfgPath := filepath.Join(t.TempDir(), "claude.json")
	base := ts.URL + "/api/mcp-config?executor=claude-code&mcp_config_path=" + url.QueryEscape(cfgPath)

	// Empty before any write
	var get struct {
		Servers map[string]any `json:"servers"`
		Path    string         `json:"path"`
	}
	getJSON(t, base, &get)
	if len(get.Servers) != 0 {
		t.Fatalf("expected no servers, got %v", get.Servers)
	}
	if get.Path != cfgPath {
		t.Errorf("expected path %s, got %s", cfgPath, get.Path)
	}

	var post struct {
		Message string `json:"message"`
	}
	resp := postJSON(t, base, UpdateMCPRequest{Servers: map[string]any{
		"context7": map[string]any{"command": "npx", "args": []string{"-y", "@upstash/context7-mcp"}},
	}}, &post)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if post.Message != "Added 1 MCP server(s)" {
		t.Errorf("unexpected summary: %q", post.Message)
	}

	getJSON(t, base, &get)
	if _, ok := get.Servers["context7"]; !ok {
		t.Errorf("expected context7 after update, got %v", get.Servers)
	}
}

func TestMCPConfigUnknownExecutor(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := getJSON(t, ts.URL+"/api/mcp-config?executor=not-a-tool", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMCPConfigUsesSelectedProfile(t *testing.T) {
	// Without an executor param the endpoint resolves the current profile
	// (claude-code by default) and honors its kind.
	_, ts := newTestServer(t, nil)

	cfgPath := filepath.Join(t.TempDir(), "claude.json")
	var get struct {
		Executor string `json:"executor"`
	}
	resp := getJSON(t, ts.URL+"/api/mcp-config?mcp_config_path="+url.QueryEscape(cfgPath), &get)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if get.Executor != "claude-code" {
		t.Errorf("expected claude-code, got %q", get.Executor)
	}
}

func waitForRunStatus(t *testing.T, db *storage.DB, id, want string) *storage.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := db.GetRun(id)
		if err == nil && run.Status == want {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %s", id, want)
	return nil
}

func TestStartRunToCompletion(t *testing.T) {
	assistantLine := `{"type":"assistant","message":{"content":"done and dusted"}}`
	spawner := &fakeSpawner{stdout: assistantLine + "\n"}
	s, ts := newTestServer(t, spawner)

	workdir := t.TempDir()
	var run storage.Run
	resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Prompt:  "fix the bug",
		Workdir: workdir,
	}, &run)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if run.ID == "" {
		t.Fatal("expected run ID")
	}
	if run.Kind != "claude-code" {
		t.Errorf("expected kind claude-code from default profile, got %q", run.Kind)
	}

	cmd := spawner.lastCmd()
	if !strings.Contains(cmd, "claude-code") || !strings.Contains(cmd, "-p") {
		t.Errorf("unexpected spawn command: %q", cmd)
	}

	final := waitForRunStatus(t, s.db, run.ID, storage.StatusDone)
	if final.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}

	// Normalized logs drain asynchronously from the raw stream
	deadline := time.Now().Add(5 * time.Second)
	for {
		var logs struct {
			Entries []executor.LogEntry `json:"entries"`
		}
		getJSON(t, ts.URL+"/api/run/logs?id="+run.ID, &logs)
		if len(logs.Entries) > 0 {
			if !strings.Contains(logs.Entries[0].Text, "done and dusted") {
				t.Errorf("unexpected entry text: %q", logs.Entries[0].Text)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no log entries appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartRunRecordsFailure(t *testing.T) {
	spawner := &fakeSpawner{waitErr: fmt.Errorf("exit status 1")}
	s, ts := newTestServer(t, spawner)

	var run storage.Run
	postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Prompt:  "break things",
		Workdir: t.TempDir(),
	}, &run)

	final := waitForRunStatus(t, s.db, run.ID, storage.StatusFailed)
	if final.Error == nil || !strings.Contains(*final.Error, "exit status 1") {
		t.Errorf("expected recorded error, got %v", final.Error)
	}
}

func TestStartRunValidation(t *testing.T) {
	_, ts := newTestServer(t, &fakeSpawner{})

	t.Run("missing prompt", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{Workdir: t.TempDir()}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("missing workdir", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{Prompt: "hi"}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{
			Prompt: "hi", Workdir: t.TempDir(), Profile: "no-such-tool",
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("follow-up on unsupported executor", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{
			Prompt: "hi", Workdir: t.TempDir(), Profile: "gemini", SessionID: "sess-1",
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestFollowUpRunUsesSession(t *testing.T) {
	spawner := &fakeSpawner{}
	_, ts := newTestServer(t, spawner)

	var run storage.Run
	resp := postJSON(t, ts.URL+"/api/runs", StartRunRequest{
		Prompt:    "continue",
		Workdir:   t.TempDir(),
		Profile:   "claude-code",
		SessionID: "sess-99",
	}, &run)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	cmd := spawner.lastCmd()
	if !strings.Contains(cmd, "--resume=sess-99") {
		t.Errorf("expected resume flag in command, got %q", cmd)
	}
}

func TestListRuns(t *testing.T) {
	spawner := &fakeSpawner{}
	s, ts := newTestServer(t, spawner)

	for i := 0; i < 3; i++ {
		var run storage.Run
		postJSON(t, ts.URL+"/api/runs", StartRunRequest{
			Prompt:  fmt.Sprintf("task %d", i),
			Workdir: t.TempDir(),
		}, &run)
		waitForRunStatus(t, s.db, run.ID, storage.StatusDone)
	}

	var result struct {
		Runs []storage.Run `json:"runs"`
	}
	getJSON(t, ts.URL+"/api/runs?limit=2", &result)
	if len(result.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(result.Runs))
	}
}

func TestStopRunNotRunning(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/run/stop?id=nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunLogsUnknownRun(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := getJSON(t, ts.URL+"/api/run/logs?id=missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestShutdownEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/shutdown", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case <-s.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown channel never closed")
	}
}
