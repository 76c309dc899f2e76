package router

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a routes file into a Resolver whenever it changes. A file
// that fails to parse or validate is logged and the active table is kept.
type Watcher struct {
	path     string
	resolver *Resolver
	logger   *zap.Logger
	debounce time.Duration

	// OnReload, if set, is called after every reload attempt with its error.
	OnReload func(err error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path on behalf of r.
func NewWatcher(path string, r *Resolver, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		resolver: r,
		logger:   logger,
		debounce: defaultDebounce,
	}
}

// Reload reads the file once and swaps it in.
func (w *Watcher) Reload() error {
	f, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	return w.resolver.Swap(f.Providers)
}

// Run watches until ctx is done. The parent directory is watched rather than
// the file so editors that replace the file on save are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating routes watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", w.path, err)
	}
	w.logger.Debug("watching routes file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("routes watcher error", zap.Error(err))
		}
	}
}

// schedule collapses a burst of events into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		err := w.Reload()
		if err != nil {
			w.logger.Warn("routes reload rejected, keeping previous table",
				zap.String("path", w.path),
				zap.Error(err),
			)
		} else {
			w.logger.Info("routes reloaded",
				zap.String("path", w.path),
				zap.Strings("providers", w.resolver.Table().Providers()),
			)
		}
		if w.OnReload != nil {
			w.OnReload(err)
		}
	})
}
