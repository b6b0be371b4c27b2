// Package watcher reloads the project store when its snapshot file is
// changed or removed by another process.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/pkg/models"
)

// Reloader is implemented by *project.Store.
type Reloader interface {
	Reload(ctx context.Context) (models.ProjectState, error)
}

// Watcher watches one snapshot file. The parent directory is watched so
// atomic replace-by-rename writes are seen.
type Watcher struct {
	path     string
	store    Reloader
	debounce time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	reloads int
}

// New creates a watcher for the file at path. A zero debounce defaults to
// 200ms.
func New(path string, store Reloader, debounce time.Duration) (*Watcher, error) {
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		debounce: debounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The watcher stops when ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	logging.Info("watching project snapshot", zap.String("path", w.path))
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.fsw.Close()
	w.wg.Wait()
}

// Reloads returns how many reloads the watcher has triggered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	// Bursts of events (temp file create, rename) collapse into one reload.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("snapshot watcher error", zap.Error(err))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	state, err := w.store.Reload(ctx)
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	if err != nil {
		logging.Warn("snapshot reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	logging.Debug("snapshot reloaded",
		zap.String("path", w.path),
		zap.Int("files", len(state.Files)),
		zap.String("active", state.ActivePath))
}
