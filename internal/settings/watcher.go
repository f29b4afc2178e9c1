package settings

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the settings store when its file is edited externally
// (e.g. through a text editor rather than the HTTP config surface).
//
// Not restart-safe: once Stop() is called, create a new Watcher.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	stopped bool
}

// NewWatcher creates a watcher for the store's settings file.
func NewWatcher(store *Store) *Watcher {
	return &Watcher{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins watching the settings file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return fmt.Errorf("settings watcher already stopped; create a new instance to restart")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// Watch the directory containing the file, not the file itself. This
	// handles editors that do atomic writes (delete + create).
	dir := filepath.Dir(w.store.Path())
	file := filepath.Base(w.store.Path())

	// The data dir may not exist before the first settings write
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		w.watcher = nil
		return err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		w.watcher = nil
		return err
	}

	go w.watchLoop(ctx, file)
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchLoop(ctx context.Context, file string) {
	// Debounce to coalesce rapid editor write events.
	var debounce *time.Timer
	const debounceDelay = 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			// Rename covers editors that save atomically via rename.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := w.store.Reload(); err != nil {
					log.Printf("Failed to reload settings: %v", err)
				} else {
					log.Printf("Settings reloaded from %s", w.store.Path())
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Settings watcher error: %v", err)
		}
	}
}
