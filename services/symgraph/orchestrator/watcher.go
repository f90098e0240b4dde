// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// FileOp is the kind of a file system change.
type FileOp int

const (
	// FileOpCreate indicates a file was created.
	FileOpCreate FileOp = iota

	// FileOpWrite indicates a file was modified.
	FileOpWrite

	// FileOpRemove indicates a file was deleted.
	FileOpRemove

	// FileOpRename indicates a file was renamed away.
	FileOpRename
)

// String returns the string representation of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileChange is one debounced change to an analyzable file.
type FileChange struct {
	// Path is the absolute path of the changed file.
	Path string
	Op   FileOp
	Time time.Time
}

// FileChangeHandler receives a batch of changes, at most one per path.
type FileChangeHandler func(changes []FileChange)

// FileWatcherOptions configures a FileWatcher.
type FileWatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before flushing.
	// Default: 100ms.
	DebounceWindow time.Duration

	// SkipDirs are directory base names never watched.
	SkipDirs []string

	// BufferSize is the size of the change channel. Default: 1000.
	BufferSize int

	// Logger receives watch errors.
	Logger *slog.Logger
}

// DefaultFileWatcherOptions returns sensible defaults.
func DefaultFileWatcherOptions() FileWatcherOptions {
	return FileWatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		SkipDirs: []string{
			".git", "node_modules", "vendor", "bower_components", "jspm_packages",
			".cursor-crawl", "dist", "build", "coverage", ".next", ".idea", ".vscode",
		},
		BufferSize: 1000,
	}
}

// FileWatcher watches a project tree for changes to analyzable files and
// delivers them in debounced batches.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single goroutine.
type FileWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	handler  FileChangeHandler
	debounce time.Duration
	skipDirs map[string]bool
	logger   *slog.Logger

	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// NewFileWatcher creates a watcher for root. A nil opts uses the defaults.
func NewFileWatcher(root string, handler FileChangeHandler, opts *FileWatcherOptions) (*FileWatcher, error) {
	if opts == nil {
		defaults := DefaultFileWatcherOptions()
		opts = &defaults
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = 100 * time.Millisecond
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = NullLogger()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	return &FileWatcher{
		root:     root,
		watcher:  w,
		handler:  handler,
		debounce: opts.DebounceWindow,
		skipDirs: skip,
		logger:   logger,
		changes:  make(chan FileChange, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start watches root and every non-skipped subdirectory. It returns once
// the watches are registered; events are processed in the background
// until ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching and waits for the background goroutines. Pending
// changes are flushed to the handler first.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *FileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// skipped reports whether path lies in a skipped directory under root.
func (w *FileWatcher) skipped(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.skipDirs[filepath.Base(dir)] {
			return true
		}
	}
	return w.skipDirs[filepath.Base(rel)]
}

func (w *FileWatcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
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
			if w.skipped(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory failed",
							slog.String("dir", event.Name),
							slog.String("error", err.Error()))
					}
					continue
				}
			}
			if !ast.IsAnalyzable(event.Name) || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			select {
			case w.changes <- FileChange{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}:
			default:
				w.logger.Warn("change buffer full, dropping event", slog.String("file", event.Name))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) FileOp {
	switch {
	case op.Has(fsnotify.Create):
		return FileOpCreate
	case op.Has(fsnotify.Write):
		return FileOpWrite
	case op.Has(fsnotify.Remove):
		return FileOpRemove
	case op.Has(fsnotify.Rename):
		return FileOpRename
	default:
		return FileOpWrite
	}
}

func (w *FileWatcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(deduplicateChanges(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// deduplicateChanges keeps the latest change per path, in first-seen order.
func deduplicateChanges(changes []FileChange) []FileChange {
	seen := make(map[string]int, len(changes))
	result := make([]FileChange, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			result[i] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}

// FileLister returns the current analyzable project files.
type FileLister func(ctx context.Context) ([]string, error)

// UpdateHandler returns a FileChangeHandler that applies each change as an
// incremental update through holder.
//
// Each change is its own Update call. A failed update keeps the previous
// snapshot and is logged; later changes in the batch still run.
func UpdateHandler(ctx context.Context, ix *Indexer, holder *IndexHolder, list FileLister, logger *slog.Logger) FileChangeHandler {
	if logger == nil {
		logger = NullLogger()
	}
	return func(changes []FileChange) {
		files, err := list(ctx)
		if err != nil {
			logger.Error("listing project files failed", slog.String("error", err.Error()))
			return
		}
		for _, c := range changes {
			if ctx.Err() != nil {
				return
			}
			rel := index.NormalizePath(ix.Root(), c.Path)
			err := holder.Apply(ctx, func(ctx context.Context, current index.SymbolIndex) (index.SymbolIndex, error) {
				return ix.Update(ctx, current, c.Path, files)
			})
			if err != nil {
				logger.Warn("incremental update failed",
					slog.String("file", rel),
					slog.String("op", c.Op.String()),
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("index updated", slog.String("file", rel), slog.String("op", c.Op.String()))
		}
	}
}
