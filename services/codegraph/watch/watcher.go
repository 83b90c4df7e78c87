// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch observes a repository checkout for source changes and
// delivers debounced batches of changed files to a reindex callback.
//
// Directories are registered recursively, skipping the same set the file
// walker skips (.git, node_modules, virtualenvs, and so on). Directories
// created while watching are picked up automatically.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/codegraph/services/codegraph/walker"
)

// defaultDebounce is how long a burst of file events is collected before
// the batch is handed to the reindex callback.
const defaultDebounce = 500 * time.Millisecond

// ReindexFunc receives one debounced batch of repo-relative file paths
// (forward slashes, sorted, deduplicated). Paths may refer to files that
// no longer exist when the file was deleted or renamed away.
type ReindexFunc func(ctx context.Context, files []string) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the event batching window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions restricts events to files with the given extensions
// (leading dot, lowercase). Empty means every file.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher delivers debounced batches of changed source files.
//
// Description: wraps fsnotify with recursive directory registration,
// extension filtering, and debounce batching. Batches are delivered
// one at a time; events arriving while a reindex is running accumulate
// into the next batch.
//
// Thread Safety: Run must be called at most once per Watcher.
type Watcher struct {
	root     string
	reindex  ReindexFunc
	debounce time.Duration
	exts     map[string]bool
	logger   *slog.Logger

	// mu serializes reindex invocations so at most one is in flight.
	mu sync.Mutex
	wg sync.WaitGroup
}

// New creates a Watcher rooted at the given repository directory.
func New(root string, reindex ReindexFunc, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}
	if reindex == nil {
		return nil, fmt.Errorf("reindex callback is required")
	}

	w := &Watcher{
		root:     absRoot,
		reindex:  reindex,
		debounce: defaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until the context is canceled. It blocks; run it in a
// goroutine when the caller has other work to do. Returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addDirTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching repository", slog.String("root", w.root))

	pending := make(map[string]bool)
	var timerC <-chan time.Time
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			if w.handleEvent(fw, event, pending) {
				if timerC == nil {
					timer.Reset(w.debounce)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(w.debounce)
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timerC = nil
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)
			w.dispatch(ctx, batch)
		}
	}
}

// handleEvent records a relevant file event into pending and registers
// newly created directories. Reports whether the debounce timer should
// be (re)armed.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event, pending map[string]bool) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !walker.SkipDir(filepath.Base(event.Name)) {
				if err := w.addDirTree(fw, event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()))
				}
			}
			return false
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if walker.SkipDir(seg) {
			return false
		}
	}
	if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(rel))] {
		return false
	}

	pending[rel] = true
	return true
}

// addDirTree registers dir and every non-skipped subdirectory with the
// fsnotify watcher.
func (w *Watcher) addDirTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unwatchable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && walker.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// dispatch hands a batch to the reindex callback on its own goroutine.
// The mutex guarantees a single in-flight reindex; later batches queue
// behind it.
func (w *Watcher) dispatch(ctx context.Context, batch []string) {
	if len(batch) == 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.mu.Lock()
		defer w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("reindexing changed files", slog.Int("count", len(batch)))
		if err := w.reindex(ctx, batch); err != nil {
			w.logger.Error("reindex failed",
				slog.Int("count", len(batch)),
				slog.String("error", err.Error()))
		}
	}()
}
