package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TheoryWatcher watches the theory directory and invokes a reload callback
// when YAML files change. Writes are debounced so editors that save in
// multiple steps trigger a single reload.
type TheoryWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func()
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewTheoryWatcher creates a watcher over dir. onChange runs on the watcher
// goroutine after each debounced change batch.
func NewTheoryWatcher(dir string, onChange func(), logger *zap.Logger) (*TheoryWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching theory directory %s: %w", dir, err)
	}
	return &TheoryWatcher{
		dir:      dir,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately.
func (w *TheoryWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("theory watcher started", zap.String("dir", w.dir))
}

// Stop stops watching.
func (w *TheoryWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *TheoryWatcher) watchLoop() {
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Info("theory file changed",
				zap.String("file", filepath.Base(event.Name)),
				zap.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, w.onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("theory watcher error", zap.Error(err))
		}
	}
}
