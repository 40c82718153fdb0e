package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestDocumentFilter(t *testing.T) {
	assert.True(t, DocumentFilter("notes.md"))
	assert.True(t, DocumentFilter(filepath.Join("sub", "report.TXT")))
	assert.False(t, DocumentFilter("image.png"))
	assert.False(t, DocumentFilter(filepath.Join(".git", "notes.md")))
	assert.False(t, DocumentFilter(".hidden.txt"))
	assert.False(t, DocumentFilter(filepath.Join("a", ".cache", "b.txt")))
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, 2*time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.NotNil(t, opts.Filter)
	assert.NotNil(t, opts.Logger)
}

// startWatcher runs w on dir and waits until it is ready.
func startWatcher(t *testing.T, w *Watcher, dir string) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, dir) }()
	time.Sleep(150 * time.Millisecond)
	t.Cleanup(cancel)
	return cancel, done
}

func collectPaths(t *testing.T, w *Watcher, want string, timeout time.Duration) []FileEvent {
	t.Helper()
	deadline := time.After(timeout)
	var seen []FileEvent
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events closed")
			seen = append(seen, batch...)
			for _, ev := range batch {
				if ev.Path == want {
					return seen
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s, saw %v", want, seen)
			return nil
		}
	}
}

func TestWatcher_Fsnotify_EmitsDocumentChanges(t *testing.T) {
	// Given: a watcher on a folder
	dir := t.TempDir()
	w := New(Options{DebounceWindow: 30 * time.Millisecond})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	startWatcher(t, w, dir)

	// When: a document and an unsupported file are written
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hello"), 0o644))

	// Then: only the document is reported
	events := collectPaths(t, w, "notes.md", 3*time.Second)
	for _, ev := range events {
		assert.NotEqual(t, "image.png", ev.Path)
	}
}

func TestWatcher_Fsnotify_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{DebounceWindow: 30 * time.Millisecond})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	startWatcher(t, w, dir)

	// When: a subdirectory appears and then gets a file
	sub := filepath.Join(dir, "chapter")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "one.txt"), []byte("text"), 0o644))

	// Then: the nested file is reported relative to the root
	collectPaths(t, w, filepath.Join("chapter", "one.txt"), 3*time.Second)
}

func TestWatcher_Polling_DetectsCreateModifyDelete(t *testing.T) {
	// Given: a polling watcher and an existing file
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(existing, []byte("v1"), 0o644))

	w := New(Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   30 * time.Millisecond,
		ForcePolling:   true,
	})
	assert.Equal(t, "polling", w.Mode())
	startWatcher(t, w, dir)

	// When: a file is added and the existing one removed
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("v1"), 0o644))
	require.NoError(t, os.Remove(existing))

	// Then: both changes surface
	events := Merge(collectPaths(t, w, "new.txt", 3*time.Second))
	ops := map[string]Operation{}
	for _, ev := range events {
		ops[ev.Path] = ev.Operation
	}
	if _, ok := ops["old.txt"]; !ok {
		for _, ev := range collectPaths(t, w, "old.txt", 3*time.Second) {
			ops[ev.Path] = ev.Operation
		}
	}
	assert.Equal(t, OpCreate, ops["new.txt"])
	assert.Equal(t, OpDelete, ops["old.txt"])
}

func TestWatcher_Start_RejectsMissingRoot(t *testing.T) {
	w := New(Options{ForcePolling: true})
	defer func() { _ = w.Stop() }()

	err := w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWatcher_Start_RejectsFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	w := New(Options{ForcePolling: true})
	defer func() { _ = w.Stop() }()

	assert.Error(t, w.Start(context.Background(), path))
}

func TestWatcher_CancelStops(t *testing.T) {
	// Given: a running watcher
	dir := t.TempDir()
	w := New(Options{ForcePolling: true, PollInterval: 20 * time.Millisecond})
	cancel, done := startWatcher(t, w, dir)

	// When: the context is cancelled
	cancel()

	// Then: Start returns the context error and channels close
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopReturnsNil(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{ForcePolling: true, PollInterval: 20 * time.Millisecond})
	_, done := startWatcher(t, w, dir)

	require.NoError(t, w.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, dir, w.Root())
}
