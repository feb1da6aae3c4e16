// Package watcher observes library directories for changes to audio
// files so stale duplicate results can be dropped without waiting for
// the next scan.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quentel/mp3org/internal/tags"
)

// debounce batches bursts of filesystem events into one notification.
const debounce = 500 * time.Millisecond

// Watcher recursively watches directories and calls onChange when an
// audio file is created, modified, renamed or removed.
type Watcher struct {
	fsw      *fsnotify.Watcher
	log      *slog.Logger
	onChange func()
}

// New returns a watcher delivering change notifications to onChange.
func New(log *slog.Logger, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, log: log, onChange: onChange}, nil
}

// Watch adds dir and all its subdirectories. Unreadable subtrees are
// logged and skipped.
func (w *Watcher) Watch(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("watch walk error, skipping", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("could not watch directory", "path", path, "err", err)
		}
		return nil
	})
}

// Run processes events until ctx is done. New subdirectories are added
// to the watch set as they appear.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				// A directory created mid-run joins the watch set.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(ev.Name); err != nil {
						w.log.Warn("could not watch directory", "path", ev.Name, "err", err)
					}
					continue
				}
			}
			if !tags.IsMusicFile(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "err", err)
		case <-fire:
			timer = nil
			fire = nil
			w.onChange()
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
