package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mlicam/vibe-kanban/internal/executor"
	"github.com/mlicam/vibe-kanban/internal/profile"
	"github.com/mlicam/vibe-kanban/internal/settings"
	"github.com/mlicam/vibe-kanban/internal/storage"
)

// Client provides an interface for interacting with the daemon.
// This abstraction allows for easy mocking in tests.
type Client interface {
	// GetConfig fetches the daemon's current settings
	GetConfig() (*settings.Config, error)

	// UpdateConfig replaces the daemon's settings
	UpdateConfig(cfg settings.Config) (*settings.Config, error)

	// GetProfiles fetches the merged profile collection
	GetProfiles() (*profile.Collection, error)

	// UpdateProfiles replaces the user profiles file
	UpdateProfiles(c *profile.Collection) (*profile.Collection, error)

	// GetMCPServers reads the MCP servers configured for an executor.
	// Empty executorName means the currently selected profile's executor.
	GetMCPServers(executorName, configPath string) (map[string]any, string, error)

	// UpdateMCPServers replaces the MCP server set and returns a change summary
	UpdateMCPServers(executorName, configPath string, servers map[string]any) (string, error)

	// OpenMCPEditor opens the MCP config file in the configured editor,
	// seeding it first if absent, and returns its path
	OpenMCPEditor(executorName, configPath string) (string, error)

	// OpenProfilesEditor opens the user profiles file in the configured
	// editor, seeding it with the defaults if absent, and returns its path
	OpenProfilesEditor() (string, error)

	// StartRun launches an agent run and returns the run record
	StartRun(req StartRunRequest) (*storage.Run, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]storage.Run, error)

	// GetRunLogs returns a run and its normalized log entries
	GetRunLogs(id string) (*storage.Run, []executor.LogEntry, error)

	// StopRun kills a running agent process
	StopRun(id string) error

	// WaitForRun polls until the run leaves the running state
	WaitForRun(id string) (*storage.Run, error)
}

// DefaultPollInterval is the default polling interval for WaitForRun.
// Tests can override this to speed up polling-based tests.
var DefaultPollInterval = 2 * time.Second

var _ Client = (*HTTPClient)(nil)

// HTTPClient is the default HTTP-based implementation of Client
type HTTPClient struct {
	addr         string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewHTTPClient creates a new HTTP daemon client
func NewHTTPClient(addr string) *HTTPClient {
	return &HTTPClient{
		addr:         addr,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		pollInterval: DefaultPollInterval,
	}
}

// NewHTTPClientFromRuntime creates an HTTP client using daemon runtime info
func NewHTTPClientFromRuntime() (*HTTPClient, error) {
	var lastErr error
	for i := 0; i < 5; i++ {
		info, err := GetRunningDaemon()
		if err == nil {
			return NewHTTPClient(fmt.Sprintf("http://%s", info.Addr)), nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("daemon not running: %w", lastErr)
}

// SetPollInterval sets the polling interval for WaitForRun
func (c *HTTPClient) SetPollInterval(interval time.Duration) {
	c.pollInterval = interval
}

// getJSON issues a GET and decodes a JSON response into out.
func (c *HTTPClient) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sendJSON issues a request with a JSON body and decodes the response into
// out (when out is non-nil).
func (c *HTTPClient) sendJSON(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.addr+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("server returned %s: %s", resp.Status, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) GetConfig() (*settings.Config, error) {
	var cfg settings.Config
	if err := c.getJSON("/api/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) UpdateConfig(cfg settings.Config) (*settings.Config, error) {
	var updated settings.Config
	if err := c.sendJSON(http.MethodPut, "/api/config", cfg, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *HTTPClient) GetProfiles() (*profile.Collection, error) {
	var coll profile.Collection
	if err := c.getJSON("/api/profiles", &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *HTTPClient) UpdateProfiles(coll *profile.Collection) (*profile.Collection, error) {
	var merged profile.Collection
	if err := c.sendJSON(http.MethodPut, "/api/profiles", coll, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// mcpQuery builds the query string shared by the MCP endpoints.
func mcpQuery(executorName, configPath string) string {
	q := url.Values{}
	if executorName != "" {
		q.Set("executor", executorName)
	}
	if configPath != "" {
		q.Set("mcp_config_path", configPath)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *HTTPClient) GetMCPServers(executorName, configPath string) (map[string]any, string, error) {
	var result struct {
		Path    string         `json:"path"`
		Servers map[string]any `json:"servers"`
	}
	if err := c.getJSON("/api/mcp-config"+mcpQuery(executorName, configPath), &result); err != nil {
		return nil, "", err
	}
	return result.Servers, result.Path, nil
}

func (c *HTTPClient) UpdateMCPServers(executorName, configPath string, servers map[string]any) (string, error) {
	var result struct {
		Message string `json:"message"`
	}
	req := UpdateMCPRequest{Servers: servers}
	if err := c.sendJSON(http.MethodPost, "/api/mcp-config"+mcpQuery(executorName, configPath), req, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// OpenMCPEditor asks the daemon to open the MCP config file in the
// configured editor, returning the file path.
func (c *HTTPClient) OpenMCPEditor(executorName, configPath string) (string, error) {
	var result struct {
		Path string `json:"path"`
	}
	if err := c.sendJSON(http.MethodPost, "/api/mcp-config/open-editor"+mcpQuery(executorName, configPath), nil, &result); err != nil {
		return "", err
	}
	return result.Path, nil
}

// OpenProfilesEditor asks the daemon to open the profiles file in the
// configured editor, returning the file path.
func (c *HTTPClient) OpenProfilesEditor() (string, error) {
	var result struct {
		Path string `json:"path"`
	}
	if err := c.sendJSON(http.MethodPost, "/api/profiles/open-editor", nil, &result); err != nil {
		return "", err
	}
	return result.Path, nil
}

func (c *HTTPClient) StartRun(req StartRunRequest) (*storage.Run, error) {
	var run storage.Run
	if err := c.sendJSON(http.MethodPost, "/api/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) ListRuns(limit int) ([]storage.Run, error) {
	var result struct {
		Runs []storage.Run `json:"runs"`
	}
	path := "/api/runs"
	if limit > 0 {
		path = fmt.Sprintf("/api/runs?limit=%d", limit)
	}
	if err := c.getJSON(path, &result); err != nil {
		return nil, err
	}
	return result.Runs, nil
}

func (c *HTTPClient) GetRunLogs(id string) (*storage.Run, []executor.LogEntry, error) {
	var result struct {
		Run     *storage.Run        `json:"run"`
		Entries []executor.LogEntry `json:"entries"`
	}
	if err := c.getJSON("/api/run/logs?id="+url.QueryEscape(id), &result); err != nil {
		return nil, nil, err
	}
	return result.Run, result.Entries, nil
}

func (c *HTTPClient) StopRun(id string) error {
	return c.sendJSON(http.MethodPost, "/api/run/stop?id="+url.QueryEscape(id), nil, nil)
}

func (c *HTTPClient) WaitForRun(id string) (*storage.Run, error) {
	for {
		run, _, err := c.GetRunLogs(id)
		if err != nil {
			return nil, fmt.Errorf("polling run %s: %w", id, err)
		}
		if run == nil {
			return nil, fmt.Errorf("run %s not found", id)
		}
		if run.Status != storage.StatusRunning {
			return run, nil
		}
		time.Sleep(c.pollInterval)
	}
}

// Shutdown asks the daemon to exit gracefully.
func (c *HTTPClient) Shutdown() error {
	return c.sendJSON(http.MethodPost, "/api/shutdown", nil, nil)
}
