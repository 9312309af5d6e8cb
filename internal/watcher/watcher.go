// Package watcher subscribes to recursive filesystem notifications across a
// set of configured roots and forwards create/modify/move events to a
// recorder callback.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// quiesceTimeout bounds how long Stop waits for the dispatcher to drain
// before returning regardless, per the fs-watcher stop contract.
const quiesceTimeout = 2 * time.Second

// Recorder receives one path per qualifying filesystem notification. It is
// called from the watcher's dispatcher goroutine and must not block for
// long; the typical implementation forwards to an event aggregator.
type Recorder func(path string)

// Watcher subscribes recursively to create, modify, and move notifications
// under each configured root.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	roots     []string
	recorder  Recorder

	mu      sync.Mutex
	watched map[string]struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher over the given roots. Roots are not examined here;
// Start silently skips any root that does not exist when it subscribes.
func New(roots []string, recorder Recorder) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		roots:     roots,
		recorder:  recorder,
		watched:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	return w, nil
}

// Start begins recursive subscription on every configured root and launches
// the background dispatcher. A root that does not exist is skipped with no
// error returned; a root that exists but cannot be subscribed to (e.g.
// permission denied) fails the call, per the "fail loudly at engine start"
// policy for watcher start failures.
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			// Path does not exist at subscription time: skip silently.
			continue
		}
		if !info.IsDir() {
			// Watch the parent directory of a single file target.
			if err := w.addDir(filepath.Dir(absRoot)); err != nil {
				return fmt.Errorf("watcher: subscribe %s: %w", absRoot, err)
			}
			continue
		}
		if err := w.addTree(absRoot); err != nil {
			return fmt.Errorf("watcher: subscribe %s: %w", absRoot, err)
		}
	}

	w.wg.Add(1)
	go w.dispatch()
	return nil
}

// addTree recursively subscribes to root and every directory beneath it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Skip unreadable subtrees rather than aborting the whole walk.
			return nil
		}
		if d.IsDir() {
			if addErr := w.addDir(path); addErr != nil {
				return addErr
			}
		}
		return nil
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	_, already := w.watched[dir]
	w.mu.Unlock()
	if already {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.watched[dir] = struct{}{}
	w.mu.Unlock()
	return nil
}

// Stop shuts down the watcher. It blocks until the dispatcher goroutine has
// quiesced, up to a bounded timeout, after which it proceeds regardless.
func (w *Watcher) Stop() error {
	close(w.done)

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(quiesceTimeout):
	}

	return w.fsWatcher.Close()
}

// dispatch consumes fsnotify events and forwards qualifying ones to the
// recorder. Create events on directories extend the recursive subscription
// so newly-created subtrees are observed without a restart.
func (w *Watcher) dispatch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Errors from the underlying notifier are not part of the
			// scored signal; the caller's logger records them via its own
			// wiring, not through this channel.
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.onCreateOrModify(ev.Name)
	case ev.Op&fsnotify.Write != 0:
		w.onCreateOrModify(ev.Name)
	case ev.Op&fsnotify.Rename != 0:
		// Rename on most backends signals the source path leaving; the
		// corresponding Create at the destination is handled above. No
		// event is recorded for the vacated source.
	}
}

func (w *Watcher) onCreateOrModify(path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Gone before we could stat it; nothing to score.
		return
	}
	if info.IsDir() {
		// Directory events are excluded at the boundary; extend the
		// recursive subscription to cover it.
		_ = w.addDir(path)
		return
	}
	if w.recorder != nil {
		w.recorder(path)
	}
}

// Roots returns the configured watch roots.
func (w *Watcher) Roots() []string {
	return w.roots
}
