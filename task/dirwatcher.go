package task

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hoidn/sexpflow/logger"
)

// DirWatcher watches a template directory and re-registers changed
// template files into a Registry live, grounded on
// pkg/config/provider/file.go's fsnotify-watcher-plus-debounce-timer
// pattern (SPEC_FULL.md §B). Only .yaml and .yml files are reloaded; other
// files in the directory are ignored.
type DirWatcher struct {
	dir string
	reg *Registry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewDirWatcher builds a watcher over dir. It does not start watching
// until Start is called.
func NewDirWatcher(dir string, reg *Registry) *DirWatcher {
	return &DirWatcher{dir: dir, reg: reg}
}

// Start loads every template currently in the directory, then begins
// watching for subsequent writes/creates, reloading the changed file's
// template on each debounced event. It returns once the initial load and
// watch setup complete; ctx cancellation stops the background goroutine.
func (w *DirWatcher) Start(ctx context.Context) error {
	if _, err := LoadTemplateDir(w.dir, w.reg); err != nil {
		logger.Get().Warn("initial template directory load had errors", "dir", w.dir, "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.watchLoop(ctx, watcher)
	logger.Get().Info("watching template directory", "dir", w.dir)
	return nil
}

func (w *DirWatcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	const debounceDelay = 100 * time.Millisecond
	timers := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounceDelay, func() {
				w.reload(path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Get().Error("template directory watch error", "error", err)
		}
	}
}

func (w *DirWatcher) reload(path string) {
	t, err := LoadTemplateFile(path)
	if err != nil {
		logger.Get().Error("failed to reload template file", "path", path, "error", err)
		return
	}
	if err := w.reg.Register(t); err != nil {
		logger.Get().Error("failed to register reloaded template", "path", path, "error", err)
		return
	}
	logger.Get().Info("reloaded template", "path", path, "name", t.Name)
}

// Close releases the underlying fsnotify watcher, if Start was called.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
