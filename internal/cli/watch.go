package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/silo/model"
)

// debounce is how long a burst of file events is coalesced before the
// watched action runs. Editors often write a file in several steps.
const debounce = 250 * time.Millisecond

// watcher runs an action whenever a declaration file under the watched
// paths changes.
type watcher struct {
	fsw    *fsnotify.Watcher
	files  map[string]bool // watched files, by absolute path
	dirs   map[string]bool // watched directory trees, by absolute path
	logger *slog.Logger
}

func newWatcher(paths []string, logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{fsw: fsw, files: make(map[string]bool), dirs: make(map[string]bool), logger: logger}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// add watches a directory tree, or the parent directory of a file.
func (w *watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		w.files[abs] = true
		return w.fsw.Add(filepath.Dir(abs))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		w.dirs[abs] = true
		return w.fsw.Add(abs)
	})
}

// relevant reports whether the event touches a declaration file.
func (w *watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || !slices.Contains(model.Extensions, filepath.Ext(ev.Name)) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return w.files[abs] || w.dirs[filepath.Dir(abs)]
}

// run calls fn on every debounced change until ctx is done. Errors of fn
// are logged and do not stop the loop.
func (w *watcher) run(ctx context.Context, fn func(context.Context) error) error {
	defer w.fsw.Close()
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.add(ev.Name); err != nil {
						w.logger.Warn("cannot watch directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("declaration changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		case <-timer.C:
			if err := fn(ctx); err != nil {
				w.logger.Error("watched run failed", "error", err)
			}
		}
	}
}
