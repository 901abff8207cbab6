// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a Manager when its config file changes and then runs the
// registered callbacks. Bursts of events within the debounce window
// collapse into one reload.
type Watcher struct {
	manager  *Manager
	debounce time.Duration

	mu        sync.Mutex
	callbacks []func(*Manager)

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewWatcher(m *Manager, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		manager:  m,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Manager)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Start watches the directory holding the config file, so editors that
// replace the file by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	if w.manager.Path() == "" {
		return errors.ConfigError(errors.ErrCodeConfigNotFound, "no config file to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.ConfigError(errors.ErrCodeConfigUnknown, "create file watcher").WithCause(err)
	}
	dir := filepath.Dir(w.manager.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return errors.ConfigError(errors.ErrCodeConfigUnknown, "watch config dir").
			WithCause(err).
			WithContext("dir", dir)
	}
	w.fsw = fsw

	go w.loop(ctx)
	logger.Infof("Config watcher started on %s", w.manager.Path())
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.fsw != nil {
			w.fsw.Close()
			<-w.done
		}
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	target := filepath.Clean(w.manager.Path())
	var timer *time.Timer
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debugf("Config file event: %s", event.String())

			stopTimer()
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("Config watcher error: %v", err)

		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.manager.Reload(); err != nil {
		logger.Errorf("Config reload failed, keeping previous settings: %v", err)
		return
	}
	logger.Infof("Config reloaded from %s", w.manager.Path())
	for _, fn := range w.callbacks {
		fn(w.manager)
	}
}
