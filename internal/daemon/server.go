package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mlicam/vibe-kanban/internal/executor"
	"github.com/mlicam/vibe-kanban/internal/mcp"
	"github.com/mlicam/vibe-kanban/internal/paths"
	"github.com/mlicam/vibe-kanban/internal/profile"
	"github.com/mlicam/vibe-kanban/internal/settings"
	"github.com/mlicam/vibe-kanban/internal/storage"
)

// Server is the HTTP API server for the daemon
type Server struct {
	store      *settings.Store
	watcher    *settings.Watcher
	db         *storage.DB
	buffers    *BufferSet
	spawner    executor.Spawner
	httpServer *http.Server
	version    string
	startTime  time.Time
	shutdownCh chan struct{}

	// profiles is the resolution collection, loaded once per process. A
	// parseable user profiles file replaces the defaults wholesale; edits
	// after startup require a daemon restart to take effect.
	profiles *profile.Collection

	procsMu sync.Mutex
	procs   map[string]executor.Process
}

// NewServer creates a new daemon server
func NewServer(db *storage.DB, store *settings.Store, addr, version string) *Server {
	s := &Server{
		store:      store,
		watcher:    settings.NewWatcher(store),
		db:         db,
		buffers:    NewBufferSet(),
		spawner:    executor.DefaultSpawner(),
		version:    version,
		startTime:  time.Now(),
		shutdownCh: make(chan struct{}),
		profiles:   profile.Cached(),
		procs:      make(map[string]executor.Process),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/profiles/open-editor", s.handleOpenProfilesEditor)
	mux.HandleFunc("/api/mcp-config", s.handleMCPConfig)
	mux.HandleFunc("/api/mcp-config/open-editor", s.handleOpenMCPEditor)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/run/logs", s.handleRunLogs)
	mux.HandleFunc("/api/run/stop", s.handleStopRun)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Start begins serving. It blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	// Check if a responsive daemon is already running (there can be only one)
	if info, err := GetRunningDaemon(); err == nil && IsDaemonAlive(info.Addr) {
		return fmt.Errorf("daemon already running (pid %d on %s)", info.PID, info.Addr)
	}

	// Start settings watcher for hot-reloading
	if err := s.watcher.Start(ctx); err != nil {
		log.Printf("Warning: failed to start settings watcher: %v", err)
		// Continue without hot-reloading - not a fatal error
	}

	// Find available port
	addr, port, err := FindAvailablePort(s.httpServer.Addr)
	if err != nil {
		s.watcher.Stop()
		return fmt.Errorf("find available port: %w", err)
	}
	s.httpServer.Addr = addr

	// Write runtime info so CLI can find us
	if err := WriteRuntime(addr, port, s.version); err != nil {
		log.Printf("Warning: failed to write runtime info: %v", err)
	}
	if err := WritePortFile(port); err != nil {
		log.Printf("Warning: failed to write port file: %v", err)
	}

	log.Printf("Starting HTTP server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		s.watcher.Stop()
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	RemoveRuntime()
	s.watcher.Stop()

	// Kill any still-running agent processes
	s.procsMu.Lock()
	for id, proc := range s.procs {
		if err := proc.Kill(); err != nil {
			log.Printf("Warning: failed to kill run %s: %v", id, err)
		}
	}
	s.procsMu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}

// ShutdownRequested is closed when a client asks the daemon to exit.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// API request/response types

type StartRunRequest struct {
	Profile   string `json:"profile,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Prompt    string `json:"prompt"`
	Workdir   string `json:"workdir,omitempty"`
	SessionID string `json:"session_id,omitempty"` // resume this session (follow-up)
}

type UpdateMCPRequest struct {
	Servers map[string]any `json:"servers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kinds := executor.Kinds()
	executors := make([]string, len(kinds))
	for i, k := range kinds {
		executors[i] = string(k)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":       s.version,
		"pid":           os.Getpid(),
		"data_dir":      paths.DataDir(),
		"config_path":   s.store.Path(),
		"profiles_path": paths.ProfilesPath(),
		"executors":     executors,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.store.Get()
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPut:
		var cfg settings.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if cfg.Profile.Profile != "" {
			if _, err := s.profiles.ResolveAgent(cfg.Profile); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if err := s.store.Update(cfg); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("save config: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, s.store.Get())

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProfiles is the editing surface: it reads and writes the user
// profiles file against the defaults-plus-overlay view. Run and MCP
// resolution use the collection loaded at startup; a daemon restart picks
// up saved edits.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, profile.MergedWithUserFile())

	case http.MethodPut:
		var c profile.Collection
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := profile.SaveUser(&c); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("save profiles: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, profile.MergedWithUserFile())

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOpenProfilesEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := paths.ProfilesPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Seed the file with the defaults so the user edits a complete
		// document rather than starting from scratch.
		if err := profile.SaveUser(profile.Defaults()); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("create profiles file: %v", err))
			return
		}
	}

	cfg := s.store.Get()
	if err := cfg.Editor.OpenFile(path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("open editor: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// mcpTarget resolves which agent kind and config file an MCP request
// addresses. The executor query param picks a kind explicitly; otherwise the
// currently selected profile decides. An mcp_config_path param overrides the
// file location.
func (s *Server) mcpTarget(r *http.Request) (executor.Kind, string, error) {
	var kind executor.Kind
	var path string

	if name := r.URL.Query().Get("executor"); name != "" {
		k, err := executor.ParseKind(name)
		if err != nil {
			return "", "", err
		}
		kind = k
	} else {
		sel := s.store.Get().Profile
		agentCfg, err := s.profiles.ResolveAgent(sel)
		if err != nil {
			return "", "", err
		}
		kind = agentCfg.Kind
		if p := s.profiles.Get(sel.Profile); p != nil {
			if sel.Variant != nil {
				if v := p.Variant(*sel.Variant); v != nil {
					path, err = v.ResolveMCPPath()
				}
			} else {
				path, err = p.ResolveMCPPath()
			}
			if err != nil {
				return "", "", err
			}
		}
	}

	if override := r.URL.Query().Get("mcp_config_path"); override != "" {
		path = paths.ExpandTilde(override)
	}
	if path == "" {
		p, err := kind.DefaultConfigPath()
		if err != nil {
			return "", "", err
		}
		path = p
	}
	return kind, path, nil
}

func (s *Server) handleMCPConfig(w http.ResponseWriter, r *http.Request) {
	kind, path, err := s.mcpTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !kind.SupportsMCP() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("executor %s does not support MCP configuration", kind))
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := mcp.ReadConfig(path, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("read %s: %v", path, err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"executor": string(kind),
			"path":     path,
			"servers":  mcp.Servers(doc, kind),
		})

	case http.MethodPost:
		var req UpdateMCPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		summary, err := mcp.UpdateServers(path, kind, req.Servers)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("update %s: %v", path, err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": summary,
			"path":    path,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOpenMCPEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kind, path, err := s.mcpTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !kind.SupportsMCP() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("executor %s does not support MCP configuration", kind))
		return
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		doc, err := mcp.InitialConfig(kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := mcp.WriteConfig(path, kind, doc); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("create %s: %v", path, err))
			return
		}
	}

	cfg := s.store.Get()
	if err := cfg.Editor.OpenFile(path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("open editor: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartRun(w, r)

	case http.MethodGet:
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		runs, err := s.db.ListRecent(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	// 1MB is plenty for a prompt
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large (max 1MB)")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	sel := s.store.Get().Profile
	if req.Profile != "" {
		sel = profile.NewSelector(req.Profile)
		if req.Variant != "" {
			sel = profile.NewSelectorWithVariant(req.Profile, req.Variant)
		}
	}

	workdir := req.Workdir
	if workdir == "" {
		if wd := s.store.Get().WorkspaceDir; wd != nil && *wd != "" {
			workdir = paths.ExpandTilde(*wd)
		}
	}
	if workdir == "" {
		writeError(w, http.StatusBadRequest, "workdir is required (no workspace dir configured)")
		return
	}
	if info, err := os.Stat(workdir); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("workdir is not a directory: %s", workdir))
		return
	}

	exec, err := s.profiles.ResolveExecutor(sel, s.spawner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sessionID *string
	if req.SessionID != "" {
		sessionID = &req.SessionID
	}
	run, err := s.db.RecordStart(sel.Profile, sel.Variant, string(exec.Kind()), req.Prompt, workdir, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("record run: %v", err))
		return
	}

	buf := s.buffers.Create(run.ID)
	exec.NormalizeLogs(buf, workdir)

	// The agent must outlive this HTTP request, so it is spawned with a
	// background context rather than the request's.
	var proc executor.Process
	if req.SessionID != "" {
		proc, err = exec.SpawnFollowUp(context.Background(), workdir, req.Prompt, req.SessionID)
	} else {
		proc, err = exec.Spawn(context.Background(), workdir, req.Prompt)
	}
	if err != nil {
		buf.CloseRaw()
		s.buffers.Remove(run.ID)
		if dbErr := s.db.Finish(run.ID, storage.StatusFailed, err.Error()); dbErr != nil {
			log.Printf("Warning: failed to record run failure: %v", dbErr)
		}
		if errors.Is(err, executor.ErrFollowUpNotSupported) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("spawn agent: %v", err))
		return
	}

	s.procsMu.Lock()
	s.procs[run.ID] = proc
	s.procsMu.Unlock()

	go s.superviseRun(run.ID, proc, buf)

	writeJSON(w, http.StatusAccepted, run)
}

// superviseRun pumps the agent's output into the run buffer and records the
// final status when the process exits.
func (s *Server) superviseRun(runID string, proc executor.Process, buf *RunBuffer) {
	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		pumpLines(proc.Stdout(), buf)
	}()
	go func() {
		defer pumps.Done()
		pumpLines(proc.Stderr(), buf)
	}()

	err := proc.Wait()
	pumps.Wait()
	buf.CloseRaw()

	s.procsMu.Lock()
	delete(s.procs, runID)
	s.procsMu.Unlock()

	status := storage.StatusDone
	errMsg := ""
	if err != nil {
		status = storage.StatusFailed
		errMsg = err.Error()
	}
	if dbErr := s.db.Finish(runID, status, errMsg); dbErr != nil {
		log.Printf("Warning: failed to record run %s finish: %v", runID, dbErr)
	}
}

func pumpLines(r io.Reader, buf *RunBuffer) {
	scanner := bufio.NewScanner(r)
	// Agent output lines can be large (stream-json events carry whole file
	// contents).
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		buf.PushRaw(scanner.Text())
	}
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := s.db.GetRun(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}

	var entries []executor.LogEntry
	if buf := s.buffers.Get(id); buf != nil {
		entries = buf.Entries()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"entries": entries,
	})
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	s.procsMu.Lock()
	proc, ok := s.procs[id]
	s.procsMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s is not running", id))
		return
	}

	if err := proc.Kill(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("kill run: %v", err))
		return
	}
	// superviseRun observes the exit and records the final status.
	writeJSON(w, http.StatusOK, map[string]string{"message": "stop requested"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "shutting down"})

	// Signal after the response is written
	go func() {
		select {
		case <-s.shutdownCh:
		default:
			close(s.shutdownCh)
		}
	}()
}
