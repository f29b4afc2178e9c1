package daemon

import (
	"sync"

	"github.com/mlicam/vibe-kanban/internal/executor"
)

// maxEntriesPerRun bounds the normalized log entries kept per run.
const maxEntriesPerRun = 5000

// RunBuffer holds the output of one agent run: the live raw line stream the
// executor's normalizer subscribes to, and the normalized entries it
// produces. It implements executor.LogStore.
type RunBuffer struct {
	mu      sync.RWMutex
	entries []executor.LogEntry
	subs    []chan string
	closed  bool
}

// NewRunBuffer creates an empty run buffer.
func NewRunBuffer() *RunBuffer {
	return &RunBuffer{}
}

// PushRaw delivers one raw output line to all subscribers.
func (rb *RunBuffer) PushRaw(line string) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.closed {
		return
	}
	for _, ch := range rb.subs {
		select {
		case ch <- line:
		default:
			// Drop if the subscriber is slow; memory is bounded.
		}
	}
}

// CloseRaw ends the raw stream, closing all subscriber channels.
func (rb *RunBuffer) CloseRaw() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return
	}
	rb.closed = true
	for _, ch := range rb.subs {
		close(ch)
	}
	rb.subs = nil
}

// SubscribeRaw implements executor.LogStore.
func (rb *RunBuffer) SubscribeRaw() (<-chan string, func()) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	ch := make(chan string, 1024)
	if rb.closed {
		close(ch)
		return ch, func() {}
	}
	rb.subs = append(rb.subs, ch)

	cancel := func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, sub := range rb.subs {
			if sub == ch {
				rb.subs = append(rb.subs[:i], rb.subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Append implements executor.LogStore.
func (rb *RunBuffer) Append(entry executor.LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if len(rb.entries) >= maxEntriesPerRun {
		rb.entries = rb.entries[1:]
	}
	rb.entries = append(rb.entries, entry)
}

// Entries returns a copy of the normalized entries so far.
func (rb *RunBuffer) Entries() []executor.LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	out := make([]executor.LogEntry, len(rb.entries))
	copy(out, rb.entries)
	return out
}

// BufferSet tracks the buffers of running and recently finished runs.
type BufferSet struct {
	mu      sync.Mutex
	buffers map[string]*RunBuffer
}

// NewBufferSet creates an empty buffer set.
func NewBufferSet() *BufferSet {
	return &BufferSet{buffers: make(map[string]*RunBuffer)}
}

// Create registers a new buffer for a run ID.
func (bs *BufferSet) Create(runID string) *RunBuffer {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	rb := NewRunBuffer()
	bs.buffers[runID] = rb
	return rb
}

// Get returns the buffer for a run ID, or nil.
func (bs *BufferSet) Get(runID string) *RunBuffer {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.buffers[runID]
}

// Remove drops the buffer for a run ID.
func (bs *BufferSet) Remove(runID string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if rb, ok := bs.buffers[runID]; ok {
		rb.CloseRaw()
		delete(bs.buffers, runID)
	}
}
