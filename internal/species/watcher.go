package species

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads species files when they change on disk. Agents already
// running keep the catalog they were spawned with.
type Watcher struct {
	registry    *Registry
	dir         string
	watcher     *fsnotify.Watcher
	pending     map[string]time.Time
	debounceDur time.Duration
	onChange    func(id string)
	mu          sync.Mutex
	logger      *zap.Logger
}

// NewWatcher watches dir and its direct subdirectories.
func NewWatcher(registry *Registry, dir string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		registry:    registry,
		dir:         dir,
		watcher:     fw,
		pending:     make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		logger:      logger,
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(filepath.Join(dir, e.Name()))
		}
	}
	return w, nil
}

// OnChange registers a callback invoked with the id of every reloaded or
// removed species. Call before Run.
func (w *Watcher) OnChange(fn func(id string)) { w.onChange = fn }

// SetDebounce changes how long a file must stay quiet before it is reloaded.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounceDur = d }

func (w *Watcher) addDir(path string) {
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("watch species dir failed", zap.String("path", path), zap.Error(err))
	}
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	tick := w.debounceDur / 3
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("watching species", zap.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("species watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush(time.Now())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if ev.Op&fsnotify.Create != 0 {
			if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
				w.addDir(ev.Name)
				w.mark(filepath.Join(ev.Name, DirFile))
				return
			}
		}
		if _, ok := IDFromPath(ev.Name); ok {
			w.mark(ev.Name)
		}
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if id, ok := w.registry.Forget(ev.Name); ok {
			w.logger.Info("species removed", zap.String("id", id))
			w.changed(id)
		}
	}
}

func (w *Watcher) mark(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		id, err := w.registry.LoadFile(path)
		if err != nil {
			w.logger.Warn("reload species failed", zap.String("path", path), zap.Error(err))
			continue
		}
		w.changed(id)
	}
}

func (w *Watcher) changed(id string) {
	if w.onChange != nil {
		w.onChange(id)
	}
}
