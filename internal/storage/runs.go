package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mlicam/vibe-kanban/internal/paths"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  profile TEXT NOT NULL,
  variant TEXT,
  kind TEXT NOT NULL,
  prompt TEXT NOT NULL,
  workdir TEXT NOT NULL,
  session_id TEXT,
  status TEXT NOT NULL CHECK(status IN ('running','done','failed')) DEFAULT 'running',
  error TEXT,
  started_at TEXT NOT NULL DEFAULT (datetime('now')),
  finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run records one spawn of a coding agent.
type Run struct {
	ID         string     `json:"id"`
	Profile    string     `json:"profile"`
	Variant    *string    `json:"variant,omitempty"`
	Kind       string     `json:"kind"`
	Prompt     string     `json:"prompt"`
	WorkDir    string     `json:"workdir"`
	SessionID  *string    `json:"session_id,omitempty"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DB wraps the run-history database.
type DB struct {
	*sql.DB
}

// DefaultDBPath returns the default database location in the data dir.
func DefaultDBPath() string {
	return filepath.Join(paths.DataDir(), "runs.db")
}

// Open opens (creating if needed) the run-history database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{db}, nil
}

// RecordStart inserts a new running run and returns it.
func (db *DB) RecordStart(profileLabel string, variant *string, kind, prompt, workdir string, sessionID *string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Profile:   profileLabel,
		Variant:   variant,
		Kind:      kind,
		Prompt:    prompt,
		WorkDir:   workdir,
		SessionID: sessionID,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, profile, variant, kind, prompt, workdir, session_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, run.Variant, run.Kind, run.Prompt, run.WorkDir,
		run.SessionID, run.Status, run.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish marks a run done or failed. errMsg is recorded for failures.
func (db *DB) Finish(id, status string, errMsg string) error {
	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}
	res, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, errVal, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun returns a run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, profile, variant, kind, prompt, workdir, session_id, status, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListRecent returns the most recently started runs, newest first.
func (db *DB) ListRecent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, profile, variant, kind, prompt, workdir, session_id, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt *string
	err := row.Scan(&run.ID, &run.Profile, &run.Variant, &run.Kind, &run.Prompt,
		&run.WorkDir, &run.SessionID, &run.Status, &run.Error, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt != nil {
		t, _ := time.Parse(time.RFC3339, *finishedAt)
		run.FinishedAt = &t
	}
	return &run, nil
}
