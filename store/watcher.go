package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a Store when one of its source files changes. It watches
// the parent directories so files replaced by rename are noticed too.
type Watcher struct {
	store    *Store
	files    map[string]struct{}
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher starts watching paths. Bursts of events closer than debounce
// trigger a single reload.
func NewWatcher(s *Store, debounce time.Duration, logger *zap.Logger, paths ...string) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		store:    s,
		files:    make(map[string]struct{}),
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("source file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			// failures are logged by the store; the old snapshot keeps serving
			_, _ = w.store.Reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}
