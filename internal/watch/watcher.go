// Package watch notifies a host when registered data files change on disk,
// so it can re-register them and drop stale lookups. The watcher never
// mutates the engine itself: the engine is single-writer, and only the
// host knows when it is safe to reload.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes the directories of watched files and reports changes,
// debounced per path so editors that write in bursts trigger one reload.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)
	log      zerolog.Logger

	mu     sync.Mutex
	paths  map[string]bool        // watched files, absolute
	dirs   map[string]bool        // directories added to fsnotify
	timers map[string]*time.Timer // pending debounced events
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. onChange is invoked from the watcher goroutine;
// the host must serialize any engine calls it makes in response.
func New(debounce time.Duration, onChange func(path string), log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		paths:    make(map[string]bool),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch starts observing one file. Watching the parent directory instead
// of the file survives the rename-then-replace pattern most writers use.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths[abs] = true
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	return nil
}

// Unwatch stops observing one file. The parent directory stays subscribed;
// events for unwatched files are filtered out in the loop.
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.paths, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}
}

// Close stops the watcher and waits for the event loop to exit. Pending
// debounce timers are cancelled; no callback fires after Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.paths[abs] {
		return
	}
	if t, ok := w.timers[abs]; ok {
		t.Stop()
	}
	w.timers[abs] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, abs)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.log.Debug().Str("path", abs).Msg("data file changed")
		w.onChange(abs)
	})
}
