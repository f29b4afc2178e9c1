package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store holds the in-memory settings document behind a read/write lock.
// Updates are persisted to disk before the in-memory value is swapped, so
// readers never observe a value that was not durably written.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore loads (and migrates if needed) the settings document at path.
// A missing or malformed file yields the defaults.
func NewStore(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		s.cfg = Default()
		return s
	}
	s.cfg = FromRaw(data)
	return s
}

// Path returns the on-disk location of the settings document.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the current settings.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// Update persists cfg and then swaps it in as the current value. If the
// write fails the in-memory settings are left unchanged.
func (s *Store) Update(cfg Config) error {
	cfg.ConfigVersion = CurrentVersion

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := save(&cfg, s.path); err != nil {
		return err
	}
	s.cfg = &cfg
	return nil
}

// Reload re-reads the settings document from disk, replacing the in-memory
// value. Used by the file watcher when the document is edited externally.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	cfg := FromRaw(data)

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

func save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
