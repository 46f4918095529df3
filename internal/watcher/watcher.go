// # internal/watcher/watcher.go
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflscan/internal/shared/observability"
	"reflscan/internal/shared/util"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultInclude matches the dump formats the loader understands.
var DefaultInclude = []string{"*.yaml", "*.yml", "*.json"}

// Watcher reports declaration dumps whose content changed. Explicit file
// targets are always reported; files inside watched directories are filtered
// by the include and exclude patterns.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	include    []matcher
	exclude    []matcher
	onChange   func([]string)
	callbackMu sync.Mutex

	targets map[string]bool
	dirs    []string

	pending   map[string]struct{}
	hashes    map[string]string
	pendingMu sync.Mutex
	timer     *time.Timer
}

type matcher struct {
	glob     glob.Glob
	fullPath bool
}

func compileMatchers(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, pattern := range patterns {
		normalized := util.NormalizePatternPath(pattern)
		if normalized == "" {
			continue
		}
		g, err := glob.Compile(normalized, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, matcher{glob: g, fullPath: util.ContainsPathSeparator(normalized)})
	}
	return out, nil
}

func (m matcher) match(path string) bool {
	if m.fullPath {
		return m.glob.Match(util.NormalizePatternPath(path))
	}
	return m.glob.Match(filepath.Base(path))
}

func NewWatcher(debounce time.Duration, include, exclude []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	if len(include) == 0 {
		include = DefaultInclude
	}

	includeMatchers, err := compileMatchers(include)
	if err != nil {
		return nil, err
	}
	excludeMatchers, err := compileMatchers(exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		include:   includeMatchers,
		exclude:   excludeMatchers,
		onChange:  onChange,
		targets:   make(map[string]bool),
		pending:   make(map[string]struct{}),
		hashes:    make(map[string]string),
	}, nil
}

// Watch registers files and directories and starts the event loop. Files are
// watched through their parent directory so editors that replace the file
// on save keep being tracked.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := w.watchRecursive(path); err != nil {
				return err
			}
			continue
		}
		clean := filepath.Clean(path)
		w.targets[clean] = true
		w.remember(clean)
		if err := w.fsWatcher.Add(filepath.Dir(clean)); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.excluded(path) {
				return filepath.SkipDir
			}
			w.dirs = append(w.dirs, filepath.Clean(path))
			return w.fsWatcher.Add(path)
		}
		if w.relevant(path) {
			w.remember(filepath.Clean(path))
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if w.inWatchedDir(event.Name) && !w.excluded(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(filepath.Clean(event.Name))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for _, path := range util.SortedStringKeys(w.pending) {
		if w.contentChanged(path) {
			paths = append(paths, path)
		}
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

// contentChanged compares the file against the last seen digest. Removed
// files count as changed. Callers hold pendingMu.
func (w *Watcher) contentChanged(path string) bool {
	sum, err := util.HashFile(path)
	if err != nil {
		_, known := w.hashes[path]
		delete(w.hashes, path)
		return known || os.IsNotExist(err)
	}
	if w.hashes[path] == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) remember(path string) {
	sum, err := util.HashFile(path)
	if err != nil {
		return
	}
	w.pendingMu.Lock()
	w.hashes[filepath.Clean(path)] = sum
	w.pendingMu.Unlock()
}

// Tracked returns the dumps known when Watch registered its paths, plus any
// seen since, in sorted order.
func (w *Watcher) Tracked() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return util.SortedStringKeys(w.hashes)
}

func (w *Watcher) relevant(path string) bool {
	clean := filepath.Clean(path)
	if w.targets[clean] {
		return true
	}
	if !w.inWatchedDir(clean) || w.excluded(clean) {
		return false
	}
	for _, m := range w.include {
		if m.match(clean) {
			return true
		}
	}
	return false
}

func (w *Watcher) inWatchedDir(path string) bool {
	for _, dir := range w.dirs {
		if util.HasPathPrefix(path, dir) {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(path string) bool {
	for _, m := range w.exclude {
		if m.match(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.relevant(path) {
			w.scheduleChange(filepath.Clean(path))
		}
		return nil
	})
}
