package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// changes collects callback invocations so tests can wait on them.
type changes struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newChanges() *changes {
	return &changes{ch: make(chan string, 16)}
}

func (c *changes) record(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	c.ch <- path
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *changes) wait(t *testing.T) string {
	t.Helper()
	select {
	case p := <-c.ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification arrived")
		return ""
	}
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vendors.csv")
	require.NoError(t, os.WriteFile(path, []byte("VendorID\nV001\n"), 0644))

	c := newChanges()
	w, err := New(20*time.Millisecond, c.record, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("VendorID\nV001\nV002\n"), 0644))

	got := c.wait(t)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, got)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0644))

	c := newChanges()
	w, err := New(100*time.Millisecond, c.record, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))

	// A burst of writes inside the debounce window collapses to one event.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a\n1\n2\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	c.wait(t)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestWatcher_IgnoresUnwatchedSiblings(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.csv")
	sibling := filepath.Join(dir, "sibling.csv")
	require.NoError(t, os.WriteFile(watched, []byte("a\n"), 0644))
	require.NoError(t, os.WriteFile(sibling, []byte("a\n"), 0644))

	c := newChanges()
	w, err := New(20*time.Millisecond, c.record, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(watched))
	require.NoError(t, os.WriteFile(sibling, []byte("a\n2\n"), 0644))
	require.NoError(t, os.WriteFile(watched, []byte("a\n2\n"), 0644))

	abs, _ := filepath.Abs(watched)
	assert.Equal(t, abs, c.wait(t))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, c.count(), "the sibling must not be reported")
}

func TestWatcher_UnwatchStopsNotifications(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0644))

	c := newChanges()
	w, err := New(20*time.Millisecond, c.record, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))
	w.Unwatch(path)
	require.NoError(t, os.WriteFile(path, []byte("a\n2\n"), 0644))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}

func TestWatcher_CloseCancelsPendingDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0644))

	c := newChanges()
	w, err := New(500*time.Millisecond, c.record, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, w.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("a\n2\n"), 0644))

	// Give the event loop a moment to arm the timer, then close before
	// the debounce elapses.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, w.Close())
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 0, c.count(), "no callback may fire after Close")

	// Close is idempotent.
	require.NoError(t, w.Close())
}
