package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports roots whose trees gained new files or folders.
type Watcher struct {
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	roots    []string
	debounce time.Duration
}

// NewWatcher watches every directory under roots.
func NewWatcher(log *zap.Logger, roots []string, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{log: log, watcher: fw, debounce: debounce}
	for _, root := range roots {
		root = filepath.Clean(root)
		w.roots = append(w.roots, root)
		w.addTree(root)
	}
	return w, nil
}

// Run delivers changed roots to notify until ctx is done. Bursts of events
// are coalesced so each root is reported once per debounce window.
func (w *Watcher) Run(ctx context.Context, notify func(root string)) error {
	defer w.watcher.Close()

	pending := map[string]bool{}
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("watch event", zap.String("op", event.Op.String()), zap.String("path", event.Name))
			w.addTree(event.Name)
			if root := w.rootOf(event.Name); root != "" {
				pending[root] = true
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			for root := range pending {
				notify(root)
			}
			pending = map[string]bool{}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// addTree watches path and its subdirectories. Non-directories are ignored.
func (w *Watcher) addTree(path string) {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.log.Debug("watch add failed", zap.Error(err), zap.String("path", p))
		}
		return nil
	})
}

func (w *Watcher) rootOf(path string) string {
	best := ""
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) || root == string(filepath.Separator) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}
