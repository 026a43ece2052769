package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]Event
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) handle(_ context.Context, events []Event) {
	r.mu.Lock()
	r.batches = append(r.batches, events)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func start(t *testing.T, root string, rec *recorder) {
	t.Helper()
	w, err := New(root, 50*time.Millisecond, rec.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(t.TempDir(), time.Second, nil)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), time.Second, func(context.Context, []Event) {})
	assert.Error(t, err)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	start(t, dir, rec)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("v"), 0o644))
	}

	events := rec.wait(t)
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, filepath.Join(dir, "SKILL.md"), ev.Path)
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	start(t, dir, rec)

	sub := filepath.Join(dir, "scripts")
	require.NoError(t, os.Mkdir(sub, 0o755))
	rec.wait(t)

	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "run.py"), []byte("print(1)"), 0o644))

	events := rec.wait(t)
	var paths []string
	for _, ev := range events {
		paths = append(paths, ev.Path)
	}
	assert.Contains(t, paths, filepath.Join(sub, "run.py"))
}

func TestWatcher_IgnoresHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	rec := newRecorder()
	start(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("x"), 0o644))
	events := rec.wait(t)
	for _, ev := range events {
		assert.Equal(t, "SKILL.md", filepath.Base(ev.Path))
	}
}

func TestWatcher_SingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))

	rec := newRecorder()
	start(t, target, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	require.NoError(t, os.WriteFile(target, []byte("b"), 0o644))
	events := rec.wait(t)
	require.NotEmpty(t, events)
	assert.Equal(t, target, events[0].Path)
	assert.NotZero(t, events[0].Op&(fsnotify.Write|fsnotify.Create))
}
