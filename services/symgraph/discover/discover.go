// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discover finds the analyzable source files of a project.
//
// Inside a git work tree the file set comes from `git ls-files`, so ignore
// rules are git's own. Elsewhere the tree is walked and the root .gitignore
// is applied. Vendored directories, hidden directories and build output are
// always skipped.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/resolve"
)

// ErrRootNotDirectory indicates the project root is missing or not a directory.
var ErrRootNotDirectory = errors.New("project root is not a directory")

var skipDirs = map[string]struct{}{
	"node_modules":     {},
	"vendor":           {},
	"bower_components": {},
	"jspm_packages":    {},
	"dist":             {},
	"build":            {},
	"out":              {},
	"coverage":         {},
}

// gitTimeout bounds the `git ls-files` call.
const gitTimeout = 10 * time.Second

// Option configures discovery.
type Option func(*options)

type options struct {
	useGit  bool
	ignores []string
	workers int
	logger  *slog.Logger
}

// WithGit enables or disables `git ls-files`. Default: enabled.
func WithGit(enabled bool) Option {
	return func(o *options) { o.useGit = enabled }
}

// WithIgnorePatterns adds gitignore-style patterns applied on top of the
// project's own rules.
func WithIgnorePatterns(patterns ...string) Option {
	return func(o *options) { o.ignores = append(o.ignores, patterns...) }
}

// WithWorkers sets how many top-level directories are walked concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Files returns the analyzable files under root as sorted, forward-slash
// paths relative to root.
func Files(ctx context.Context, root string, opts ...Option) ([]string, error) {
	o := options{
		useGit:  true,
		workers: 4,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	var extra *ignore.GitIgnore
	if len(o.ignores) > 0 {
		extra = ignore.CompileIgnoreLines(o.ignores...)
	}

	var candidates []string
	source := "walk"
	if o.useGit {
		if tracked, ok := gitLsFiles(ctx, root); ok {
			candidates = tracked
			source = "git"
		}
	}
	if source == "walk" {
		candidates, err = walk(ctx, root, loadGitignore(root), o.workers)
		if err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(candidates))
	for _, rel := range candidates {
		if !keep(rel) {
			continue
		}
		if extra != nil && extra.MatchesPath(rel) {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)

	o.logger.Debug("discovered project files",
		slog.String("root", root),
		slog.String("source", source),
		slog.Int("files", len(files)))
	return files, nil
}

// Lister returns a function listing root's files with opts, suitable for
// the watcher's update handler.
func Lister(root string, opts ...Option) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		return Files(ctx, root, opts...)
	}
}

// keep reports whether a relative slash path is an analyzable project file.
func keep(rel string) bool {
	if !ast.IsAnalyzable(rel) || resolve.IsExternalPath(rel) {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if _, skip := skipDirs[seg]; skip {
			return false
		}
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// walk lists the files under root, walking each top-level directory in its
// own goroutine.
func walk(ctx context.Context, root string, gi *ignore.GitIgnore, workers int) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	add := func(rel string) {
		mu.Lock()
		files = append(files, rel)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			if e.Type().IsRegular() && !ignored(gi, name, false) {
				add(name)
			}
			continue
		}
		if skipDir(name) || ignored(gi, name, true) {
			continue
		}
		g.Go(func() error {
			return filepath.WalkDir(filepath.Join(root, name), func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				rel, relErr := filepath.Rel(root, p)
				if relErr != nil {
					return nil
				}
				rel = filepath.ToSlash(rel)
				if d.IsDir() {
					if skipDir(d.Name()) || ignored(gi, rel, true) {
						return filepath.SkipDir
					}
					return nil
				}
				if !d.Type().IsRegular() || ignored(gi, rel, false) {
					return nil
				}
				add(rel)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func skipDir(name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func ignored(gi *ignore.GitIgnore, rel string, dir bool) bool {
	if gi == nil {
		return false
	}
	if dir {
		return gi.MatchesPath(rel + "/")
	}
	return gi.MatchesPath(rel)
}

// gitLsFiles lists tracked and untracked-but-not-ignored files. ok is false
// when root is not a git work tree or git is unavailable.
func gitLsFiles(ctx context.Context, root string) ([]string, bool) {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, false
	}

	var files []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		// Deleted-but-tracked files still appear in the index.
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(line))); err != nil {
			continue
		}
		files = append(files, line)
	}
	return files, true
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
