package watcher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

// TestDebounceDeletedWins tests that a delete overrides pending create/modify
func TestDebounceDeletedWins(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := filepath.Join(root, "img.jpg")

	w.debounce(rawEvent{path: p, eventType: types.EventCreated})
	w.debounce(rawEvent{path: p, eventType: types.EventDeleted})
	// A write after the delete must not resurrect the entry
	w.debounce(rawEvent{path: p, eventType: types.EventModified})

	entry := w.pending[p]
	require.NotNil(t, entry)
	assert.Equal(t, types.EventDeleted, entry.eventType)
	entry.timer.Stop()
}

// TestDebounceLastWriterWins tests coalescing without a delete involved
func TestDebounceLastWriterWins(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := filepath.Join(root, "img.jpg")

	w.debounce(rawEvent{path: p, eventType: types.EventCreated})
	w.debounce(rawEvent{path: p, eventType: types.EventModified})

	entry := w.pending[p]
	require.NotNil(t, entry)
	assert.Equal(t, types.EventModified, entry.eventType)
	assert.Len(t, w.pending, 1)
	entry.timer.Stop()
}

// TestFireDelivers tests that a fired entry becomes an enqueue job
func TestFireDelivers(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := writeFile(t, root, "img.jpg", "data")

	w.debounce(rawEvent{path: p, eventType: types.EventCreated})
	w.pending[p].timer.Stop()
	w.fire(context.Background(), p)

	select {
	case job := <-w.jobCh:
		assert.Equal(t, p, job.containerPath)
		assert.Equal(t, types.EventCreated, job.eventType)
	default:
		t.Fatal("expected an enqueue job")
	}
	assert.Empty(t, w.pending)
}

// TestFireDropsStale tests the stale entry guard
func TestFireDropsStale(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := writeFile(t, root, "img.jpg", "data")

	w.debounce(rawEvent{path: p, eventType: types.EventCreated})
	w.pending[p].timer.Stop()

	// Pretend the dispatcher stalled past twice the debounce delay
	w.now = func() time.Time { return time.Now().Add(3 * w.cfg.DebounceDelay) }
	w.fire(context.Background(), p)

	select {
	case <-w.jobCh:
		t.Fatal("stale entry must not produce a job")
	default:
	}
}

// TestFireDropsVanished tests that non-delete events for missing files drop
func TestFireDropsVanished(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := writeFile(t, root, "img.jpg", "data")

	w.debounce(rawEvent{path: p, eventType: types.EventCreated})
	w.pending[p].timer.Stop()
	require.NoError(t, os.Remove(p))

	w.fire(context.Background(), p)

	select {
	case <-w.jobCh:
		t.Fatal("vanished file must not produce a job")
	default:
	}
}

// TestFireDeleteSurvivesMissingFile tests that deletes fire despite no file
func TestFireDeleteSurvivesMissingFile(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	p := filepath.Join(root, "gone.jpg")

	w.debounce(rawEvent{path: p, eventType: types.EventDeleted})
	w.pending[p].timer.Stop()
	w.fire(context.Background(), p)

	select {
	case job := <-w.jobCh:
		assert.Equal(t, types.EventDeleted, job.eventType)
	default:
		t.Fatal("delete should fire even when the file is gone")
	}
}

// TestEmitRawFiltersUnsupported tests the extension gate
func TestEmitRawFiltersUnsupported(t *testing.T) {
	root := t.TempDir()
	w, _, _ := newTestWatcher(t, root)
	ctx := context.Background()

	w.emitRaw(ctx, filepath.Join(root, "junk.tmp"), types.EventCreated)
	w.emitRaw(ctx, filepath.Join(root, "noext"), types.EventCreated)
	w.emitRaw(ctx, filepath.Join(root, "IMG.JPG"), types.EventCreated)

	// Only the jpg passes, and extension matching is case-insensitive
	assert.Len(t, w.rawCh, 1)
}

// TestWatcherEndToEnd runs the full loop against a real directory: a burst
// of writes to one file must yield exactly one queued event.
func TestWatcherEndToEnd(t *testing.T) {
	root := t.TempDir()
	w, store, _ := newTestWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watches a moment to land
	time.Sleep(100 * time.Millisecond)

	p := filepath.Join(root, "img.jpg")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(p, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(p, []byte("v3"), 0o644))

	// Debounce window is 50ms (+10ms settle); wait well past it
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := store.QueueLen(ctx, state.ProcessingQueue)
		require.NoError(t, err)
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	n, err := store.QueueLen(context.Background(), state.ProcessingQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "burst must coalesce to one event")

	payload, err := store.DequeueBlocking(context.Background(), state.ProcessingQueue, 100*time.Millisecond)
	require.NoError(t, err)
	var ev types.FileEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "/photos/img.jpg", ev.FilePath)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down")
	}
}
