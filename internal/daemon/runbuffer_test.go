package daemon

import (
	"fmt"
	"testing"
	"time"

	"github.com/mlicam/vibe-kanban/internal/executor"
)

func TestRunBufferSubscribeReceivesRawLines(t *testing.T) {
	rb := NewRunBuffer()
	ch, cancel := rb.SubscribeRaw()
	defer cancel()

	rb.PushRaw("line one")
	rb.PushRaw("line two")

	for _, want := range []string{"line one", "line two"} {
		select {
		case got := <-ch:
			if got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestRunBufferCloseRawClosesSubscribers(t *testing.T) {
	rb := NewRunBuffer()
	ch, cancel := rb.SubscribeRaw()
	defer cancel()

	rb.CloseRaw()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}

	// Pushing after close must not panic
	rb.PushRaw("late line")
}

func TestRunBufferCancelUnsubscribes(t *testing.T) {
	rb := NewRunBuffer()
	_, cancel := rb.SubscribeRaw()
	cancel()
	cancel() // idempotent

	// Push with no live subscribers must not block
	rb.PushRaw("orphan line")
}

func TestRunBufferEntriesCapped(t *testing.T) {
	rb := NewRunBuffer()
	for i := 0; i < maxEntriesPerRun+100; i++ {
		rb.Append(executor.LogEntry{Text: fmt.Sprintf("entry %d", i), Type: "text"})
	}

	entries := rb.Entries()
	if len(entries) != maxEntriesPerRun {
		t.Fatalf("expected %d entries, got %d", maxEntriesPerRun, len(entries))
	}
	// Oldest entries are dropped first
	if entries[0].Text != "entry 100" {
		t.Errorf("expected oldest retained entry to be 'entry 100', got %q", entries[0].Text)
	}
}

func TestBufferSetLifecycle(t *testing.T) {
	bs := NewBufferSet()

	if bs.Get("r1") != nil {
		t.Error("expected nil for unknown run")
	}

	buf := bs.Create("r1")
	if buf == nil {
		t.Fatal("Create returned nil")
	}
	if bs.Get("r1") != buf {
		t.Error("Get should return the created buffer")
	}

	bs.Remove("r1")
	if bs.Get("r1") != nil {
		t.Error("expected nil after Remove")
	}
}
