package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSink) record(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherRecordsNewFile(t *testing.T) {
	root := t.TempDir()
	sink := &recordingSink{}

	w, err := New([]string{root}, sink.record)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	target := filepath.Join(root, "payload.bin")
	require.NoError(t, os.WriteFile(target, []byte("data"), 0600))

	waitFor(t, func() bool {
		for _, p := range sink.snapshot() {
			if p == target {
				return true
			}
		}
		return false
	})
}

func TestWatcherExtendsToNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	sink := &recordingSink{}

	w, err := New([]string{root}, sink.record)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	sub := filepath.Join(root, "newsub")
	require.NoError(t, os.MkdirAll(sub, 0700))

	target := filepath.Join(sub, "nested.bin")
	waitFor(t, func() bool {
		return os.WriteFile(target, []byte("x"), 0600) == nil
	})

	waitFor(t, func() bool {
		for _, p := range sink.snapshot() {
			if p == target {
				return true
			}
		}
		return false
	})
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	w, err := New([]string{missing}, func(string) {})
	require.NoError(t, err)
	assert.NoError(t, w.Start())
	defer w.Stop()
}

func TestWatcherStopReturnsWithinTimeout(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, func(string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	start := time.Now()
	require.NoError(t, w.Stop())
	assert.Less(t, time.Since(start), 3*time.Second)
}
