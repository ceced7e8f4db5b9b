// Package watch re-runs an action when any of a set of input files changes.
package watch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
)

// DefaultDebounce absorbs the burst of events a single editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Callback receives the changed files, sorted.
type Callback func(ctx context.Context, changed []string) error

// Watcher watches files through their parent directories, so files replaced
// by rename-on-save stay watched.
type Watcher struct {
	files    map[string]bool
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	fire    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before the callback runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger replaces the "watch" component logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a watcher for paths. Empty paths are ignored.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		files:    make(map[string]bool),
		watcher:  fw,
		debounce: DefaultDebounce,
		log:      logger.ComponentLogger("watch"),
		pending:  make(map[string]struct{}),
		fire:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "resolve %s", p)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(w.files) == 0 {
		fw.Close()
		return nil, errors.Wrap(errors.ErrInvalidInput, "nothing to watch")
	}

	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to watch %s", dir)
		}
	}
	return w, nil
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Run delivers debounced changes to cb until ctx is cancelled. Callback
// errors are logged and do not stop the watcher. Run closes the watcher
// before returning.
func (w *Watcher) Run(ctx context.Context, cb Callback) error {
	defer w.watcher.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debugw("Input changed", logger.FieldFile, event.Name, logger.FieldOp, event.Op.String())
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("Watcher error", logger.FieldError, err)

		case <-w.fire:
			changed := w.drain()
			if len(changed) == 0 {
				continue
			}
			if err := cb(ctx, changed); err != nil {
				w.log.Errorw("Watch callback failed", logger.FieldError, errors.UserMessage(err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	if isBackupFile(event.Name) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs, _ := filepath.Abs(name)
	w.pending[abs] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := make([]string, 0, len(w.pending))
	for f := range w.pending {
		changed = append(changed, f)
	}
	sort.Strings(changed)
	w.pending = make(map[string]struct{})
	return changed
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// isBackupFile matches editor swap and backup files, and rotated config
// backups (.back1 to .back3).
func isBackupFile(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	ext := filepath.Ext(base)
	return ext == ".back1" || ext == ".back2" || ext == ".back3"
}
