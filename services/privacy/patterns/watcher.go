// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is the quiet period after the last write before a
// changed pattern file is reloaded.
const DefaultReloadDebounce = 250 * time.Millisecond

// ReloadFunc receives a freshly compiled Library after the watched file
// changes. It is never called with an invalid Library.
type ReloadFunc func(lib *Library)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is the quiet period before reloading. Zero uses
	// DefaultReloadDebounce.
	Debounce time.Duration

	// OnError receives load failures. The previous Library stays in effect.
	OnError func(err error)

	// Logger receives reload events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Watcher reloads a pattern file when it changes on disk.
//
// Description:
//
//	Watches the file's parent directory rather than the file itself so
//	that editors which save by rename are still seen. Bursts of events
//	are collapsed by a debounce timer; only then is the file loaded. A
//	file that fails to load is reported through OnError and otherwise
//	ignored.
//
// Thread Safety: Start and Stop are safe to call from any goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc
	onError  func(error)
	logger   *slog.Logger

	mu       sync.Mutex
	watching bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for path.
//
// Inputs:
//   - path: The pattern YAML file.
//   - onReload: Called with each successfully reloaded Library. Must not be nil.
//   - opts: Optional settings. Nil uses defaults.
//
// Outputs:
//   - *Watcher: The watcher, not yet started.
//   - error: Non-nil if onReload is nil or fsnotify cannot be initialized.
func NewWatcher(path string, onReload ReloadFunc, opts *WatcherOptions) (*Watcher, error) {
	if onReload == nil {
		return nil, errors.New("patterns.NewWatcher: onReload must not be nil")
	}
	if opts == nil {
		opts = &WatcherOptions{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("patterns.NewWatcher: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("patterns.NewWatcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: opts.Debounce,
		onReload: onReload,
		onError:  opts.OnError,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultReloadDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Start begins watching. It returns immediately; events are handled on a
// background goroutine until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("patterns.Watcher.Start: %w", err)
	}
	w.watching = true
	go w.loop(ctx)
	return nil
}

// Stop ends watching and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("privacy patterns watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	lib, err := LoadFile(ctx, w.path)
	if err != nil {
		w.logger.Error("privacy patterns reload failed, keeping previous tables",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.logger.Info("privacy patterns reloaded",
		slog.String("path", w.path),
		slog.String("version", lib.Version()),
		slog.String("fingerprint", lib.Fingerprint()),
	)
	w.onReload(lib)
}
