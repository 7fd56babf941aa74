package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Sink receives file events as slash paths relative to the watched root.
// Engine implements it.
type Sink interface {
	FileChanged(path string)
	FileRemoved(path string)
	FileRenamed(oldPath, newPath string)
}

// moveWindow is how long a Rename event waits for the Create of its new
// name before it is reported as a removal.
const moveWindow = 50 * time.Millisecond

// Watcher follows a directory tree with fsnotify and forwards changes to a
// Sink. Debouncing is left to the sink.
type Watcher struct {
	root    string
	sink    Sink
	ignored func(string) bool
	log     *slog.Logger
	watcher *fsnotify.Watcher

	// moved is the old name of a file renamed within the tree whose new name
	// has not been seen yet. Only the event loop touches it.
	moved     string
	moveTimer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for root. ignored may be nil.
func NewWatcher(root string, sink Sink, ignored func(string) bool, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ignored == nil {
		ignored = func(string) bool { return false }
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		sink:    sink,
		ignored: ignored,
		log:     logger,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start watches root and every folder below it, then processes events until
// ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root, false); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends event processing and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) rel(p string) (string, bool) {
	r, err := filepath.Rel(w.root, p)
	if err != nil || r == "." || r == ".." || filepath.IsAbs(r) {
		return "", false
	}
	r = filepath.ToSlash(r)
	if w.ignored(r) {
		return "", false
	}
	return r, true
}

// addRecursive watches dir and its subfolders. When announce is set, files
// found along the way are reported as changed, for folders created or
// moved into the tree after the initial scan.
func (w *Watcher) addRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != w.root {
			if _, ok := w.rel(p); !ok {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !d.IsDir() {
			if announce {
				if r, ok := w.rel(p); ok {
					w.sink.FileChanged(r)
				}
			}
			return nil
		}
		return w.watcher.Add(p)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer w.dropMove()
	for {
		var expired <-chan time.Time
		if w.moveTimer != nil {
			expired = w.moveTimer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-expired:
			w.moveTimer = nil
			w.flushMove()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	r, ok := w.rel(event.Name)
	if !ok {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		from := w.moved
		w.dropMove()
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if from != "" {
				w.sink.FileRemoved(from)
			}
			if err := w.addRecursive(event.Name, true); err != nil {
				w.log.Warn("watch new folder failed", "path", r, "err", err)
			}
			return
		}
		if from != "" {
			w.sink.FileRenamed(from, r)
			return
		}
		w.sink.FileChanged(r)
	case event.Has(fsnotify.Write):
		w.sink.FileChanged(r)
	case event.Has(fsnotify.Rename):
		// fsnotify reports the new name as a separate Create right after.
		w.flushMove()
		w.moved = r
		w.moveTimer = time.NewTimer(moveWindow)
	case event.Has(fsnotify.Remove):
		w.sink.FileRemoved(r)
	}
}

// flushMove reports a pending rename whose new name never showed up, such
// as a move out of the tree or to an ignored name, as a removal.
func (w *Watcher) flushMove() {
	if from := w.moved; from != "" {
		w.dropMove()
		w.sink.FileRemoved(from)
	}
}

func (w *Watcher) dropMove() {
	w.moved = ""
	if w.moveTimer != nil {
		w.moveTimer.Stop()
		w.moveTimer = nil
	}
}
