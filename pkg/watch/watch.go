// Package watch triggers pipeline runs when journal, to-do or rule files change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RunFunc is invoked once per settled burst of changes.
type RunFunc func(ctx context.Context) error

// Options selects what to watch.
type Options struct {
	// Dirs are watched recursively for markdown changes.
	Dirs []string
	// Files are watched through their parent directory so that editors
	// replacing the file on save are still noticed.
	Files    []string
	Debounce time.Duration
}

// ErrStopped is returned by Start after Stop. A Watcher cannot be restarted.
var ErrStopped = errors.New("watch: watcher stopped")

// Watcher debounces file system events into runs.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirs     []string
	files    map[string]bool
	debounce time.Duration
	run      RunFunc
	log      *zap.Logger

	dirty     bool
	lastEvent time.Time
	runs      int

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stopped bool
}

// New creates a stopped watcher.
func New(opts Options, run RunFunc, log *zap.Logger) (*Watcher, error) {
	if run == nil {
		return nil, errors.New("watch: run func is required")
	}
	if len(opts.Dirs) == 0 && len(opts.Files) == 0 {
		return nil, errors.New("watch: nothing to watch")
	}
	if log == nil {
		log = zap.NewNop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(opts.Files)),
		debounce: debounce,
		run:      run,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, d := range opts.Dirs {
		w.dirs = append(w.dirs, filepath.Clean(d))
	}
	for _, f := range opts.Files {
		w.files[filepath.Clean(f)] = true
	}
	return w, nil
}

// Start registers the watches and begins the event loop. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, d := range w.dirs {
		w.addTree(d)
	}
	parents := make(map[string]bool)
	for f := range w.files {
		parents[filepath.Dir(f)] = true
	}
	for p := range parents {
		if err := w.watcher.Add(p); err != nil {
			w.log.Warn("watch: cannot watch directory", zap.String("path", p), zap.Error(err))
		}
	}
	if len(w.watcher.WatchList()) == 0 {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return errors.New("watch: none of the watched paths exist")
	}

	go w.loop(ctx)
	return nil
}

// Stop ends the event loop, waits for a running action and releases the watcher.
// Further calls are no-ops.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	wasRunning := w.running
	w.running = false
	w.stopped = true
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		w.log.Warn("watch: error closing watcher", zap.Error(err))
	}
}

// Runs returns how many runs were triggered so far.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

func (w *Watcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("watch: cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		w.log.Warn("watch: cannot walk directory", zap.String("path", root), zap.Error(err))
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch: watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	name := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 && w.inDirs(name) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.addTree(name)
			return
		}
	}
	if !w.relevant(name) {
		return
	}

	w.log.Debug("watch: change detected", zap.String("path", name), zap.String("op", event.Op.String()))
	w.mu.Lock()
	w.dirty = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) relevant(name string) bool {
	if w.files[name] {
		return true
	}
	return w.inDirs(name) && strings.EqualFold(filepath.Ext(name), ".md")
}

func (w *Watcher) inDirs(name string) bool {
	for _, d := range w.dirs {
		if rel, err := filepath.Rel(d, name); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// flush runs once the last event is older than the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.dirty || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.dirty = false
	w.runs++
	w.mu.Unlock()

	started := time.Now()
	if err := w.run(ctx); err != nil {
		w.log.Warn("watch: triggered run failed", zap.Error(err))
		return
	}
	w.log.Info("watch: triggered run finished", zap.Duration("took", time.Since(started)))
}
