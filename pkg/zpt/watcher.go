package zpt

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long a Watcher waits for changes to settle.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watcher invalidates cached documents under a directory when their files
// change. Events are collected until none arrive for the debounce period,
// then every changed file is dropped from the cache at once.
type Watcher struct {
	engine   *Engine
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	hooks    []func(paths []string)

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Watch starts watching dir, recursively, for changes to templates that e
// has cached. A debounce of 0 uses DefaultWatchDebounce. Each hook is
// called with the paths dropped by a debounced batch.
func (e *Engine) Watch(dir string, debounce time.Duration, hooks ...func(paths []string)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addWatchRecursive(fw, dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		engine:   e,
		dir:      dir,
		debounce: debounce,
		watcher:  fw,
		logger:   e.Logger().With("component", "watcher", "dir", dir),
		hooks:    hooks,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	w.logger.Info("watching templates", "debounce", debounce)
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = map[string]struct{}{}
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-timerC:
			timerC = nil
			w.flush(pending)
			pending = map[string]struct{}{}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
					if addErr := addWatchRecursive(w.watcher, evt.Name); addErr != nil {
						w.logger.Warn("failed to watch new directory", "path", evt.Name, "error", addErr)
					}
				}
			}
			if shouldInvalidate(evt) {
				pending[evt.Name] = struct{}{}
				resetTimer()
			}
		}
	}
}

func (w *Watcher) flush(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		if w.engine.Invalidate(p) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.logger.Debug("invalidated templates", "paths", paths)
	for _, hook := range w.hooks {
		hook(paths)
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
		<-w.doneCh
	})
	return nil
}

func shouldInvalidate(evt fsnotify.Event) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	return !strings.HasPrefix(base, ".")
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
