// Package watcher triggers debounced rescans when files under the
// watched roots change. The rescan callback is expected to be
// idempotent; bursts of filesystem events coalesce into one call.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher debounces filesystem events into rescan callbacks.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	rescan    func()
	log       *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher that calls rescan after events settle for the
// debounce interval.
func New(debounce time.Duration, rescan func(), log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		rescan:    rescan,
		log:       log,
		done:      make(chan struct{}),
	}, nil
}

// AddRoot registers a root directory and all its subdirectories.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if aerr := w.fsWatcher.Add(path); aerr != nil {
			w.log.Warn("cannot watch directory", "path", path, "error", aerr)
		}
		return nil
	})
}

// Start begins processing events. It returns immediately; events are
// handled on a background goroutine until Close.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// New directories must be added to keep deep trees
			// covered.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.fsWatcher.Add(ev.Name)
				}
			}
			w.bump()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// bump schedules (or reschedules) the debounced rescan.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.rescan)
}

// Close stops event processing and cancels any pending rescan.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
