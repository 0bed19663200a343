package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cogkernel/internal/logging"
)

// Watcher reloads a Config from disk whenever its source file changes,
// debouncing rapid successive writes so a burst of saves triggers one
// reload instead of many.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	path        string
	current     *Config
	debounceDur time.Duration
	onReload    func(*Config)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a Watcher over path, using initial as the
// already-loaded configuration.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     w,
		path:        path,
		current:     initial,
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked with the newly loaded Config
// after a debounced file-change event. Not safe to call concurrently
// with Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = fn
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the config file in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.path); err != nil {
		logging.Get(logging.CategoryConfig).Warnw("initial watch failed, will not hot-reload", "path", w.path, "error", err)
	}
	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

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
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = true
			timer.Reset(w.debounceDur)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Errorw("config watcher error", "error", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryConfig).Errorw("config reload failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	logging.Get(logging.CategoryConfig).Infow("config hot-reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
