// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve links extracted declarations into a dependency graph.
//
// A Resolver builds one project-wide Context from the facts of every
// analyzable file, then walks each indexed file's use-sites and records
// deduplicated forward (dependsOn) and reverse (dependents) edges between
// tracked declarations. Resolution always covers the whole project;
// per-file facts are cached by content hash and the Context is memoized by
// the fingerprint of the file set, so only changed files are re-parsed.
package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// DefaultContextLines is the number of lines kept on each side of a
// use-site in DependentEdge.ContextSnippet.
const DefaultContextLines = 2

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFactCache replaces the default in-memory fact cache.
func WithFactCache(cache FactCache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithContextLines sets how many lines surround a use-site in context
// snippets. Negative values are ignored.
func WithContextLines(n int) ResolverOption {
	return func(r *Resolver) {
		if n >= 0 {
			r.contextLines = n
		}
	}
}

// WithExtractor sets the extractor used for files missing from the cache.
func WithExtractor(x *ast.Extractor) ResolverOption {
	return func(r *Resolver) {
		if x != nil {
			r.extractor = x
		}
	}
}

// Stats summarizes one resolution pass.
type Stats struct {
	// Files is the number of project files in the resolution context.
	Files int

	// EdgesAdded counts forward edges appended in this pass. A second pass
	// over an unchanged index adds none.
	EdgesAdded int

	// ModuleSymbols counts module symbols created in this pass.
	ModuleSymbols int

	// FileErrors counts files skipped with a FileError.
	FileErrors int

	// FactsReused counts files whose facts came from the cache.
	FactsReused int

	// ContextReused is true when the memoized Context matched the file set.
	ContextReused bool
}

// Resolver records dependency edges between indexed declarations.
//
// Thread Safety:
//
//	Resolve may be called from multiple goroutines on different indexes;
//	the memoized Context is guarded by a mutex.
type Resolver struct {
	extractor    *ast.Extractor
	cache        FactCache
	logger       *slog.Logger
	contextLines int

	mu   sync.Mutex
	memo *Context
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		extractor:    ast.NewExtractor(),
		cache:        NewMemoryFactCache(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		contextLines: DefaultContextLines,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prime stores facts produced elsewhere, typically by the indexer's own
// extraction pass, so resolution does not parse the file again.
func (r *Resolver) Prime(ctx context.Context, facts *ast.FileFacts) {
	if facts == nil {
		return
	}
	if err := r.cache.Put(ctx, facts); err != nil {
		r.logger.Debug("fact cache put failed",
			slog.String("file", facts.FilePath),
			slog.String("error", err.Error()))
	}
}

// Resolve records edges for every file in idx.
//
// Description:
//
//	Builds the resolution context over allFiles plus every file already in
//	idx, then visits each indexed file's use-sites in sorted file order.
//	Each use-site that resolves to a tracked entry yields a dependsOn edge
//	on the innermost tracked container (or the file's lazily created
//	module symbol) and the mirrored dependents edge on the target. Self
//	edges are skipped and every append is deduplicated, so running Resolve
//	twice leaves the index unchanged.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per file.
//	idx - The index to mutate in place.
//	allFiles - Project file paths, absolute or relative to root.
//	root - Project root directory.
//
// Outputs:
//
//	error - Only context cancellation. Per-file failures are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, idx index.SymbolIndex, allFiles []string, root string) error {
	_, err := r.ResolveWithStats(ctx, idx, allFiles, root)
	return err
}

// ResolveWithStats is Resolve returning a summary of the pass.
func (r *Resolver) ResolveWithStats(ctx context.Context, idx index.SymbolIndex, allFiles []string, root string) (Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("resolve canceled before start: %w", err)
	}

	files := projectFiles(idx, allFiles, root)
	ctx, span := startResolveSpan(ctx, len(idx), len(files))
	defer span.End()
	start := time.Now()

	contents := make(map[string][]byte, len(idx))
	facts := make(map[string]*ast.FileFacts, len(files))
	factList := make([]*ast.FileFacts, 0, len(files))

	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("resolve canceled: %w", err)
		}
		_, indexed := idx[p]

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			if indexed {
				r.fileError(&stats, p, fmt.Errorf("read: %w", err))
			}
			continue
		}

		f, reused, err := r.factsFor(ctx, p, content)
		if err != nil {
			if indexed {
				r.fileError(&stats, p, err)
			}
			continue
		}
		if reused {
			stats.FactsReused++
		}
		facts[p] = f
		factList = append(factList, f)
		if indexed {
			contents[p] = content
		}
	}
	stats.Files = len(factList)

	rc, reused := r.context(factList)
	stats.ContextReused = reused

	lookup := idx.Lookup()
	for _, p := range idx.Files() {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("resolve canceled: %w", err)
		}
		f, ok := facts[p]
		if !ok {
			continue
		}
		if err := r.resolveFile(idx, lookup, rc, f, contents[p], &stats); err != nil {
			r.fileError(&stats, p, err)
		}
	}

	duration := time.Since(start)
	recordResolveMetrics(ctx, duration, stats)
	setResolveSpanResult(span, stats)

	r.logger.Debug("dependency resolution complete",
		slog.Int("files", stats.Files),
		slog.Int("edges_added", stats.EdgesAdded),
		slog.Int("module_symbols", stats.ModuleSymbols),
		slog.Int("file_errors", stats.FileErrors),
		slog.Int("facts_reused", stats.FactsReused),
		slog.Bool("context_reused", stats.ContextReused),
		slog.Duration("duration", duration))

	return stats, nil
}

// factsFor returns cached facts for content, analyzing it on a miss.
func (r *Resolver) factsFor(ctx context.Context, p string, content []byte) (*ast.FileFacts, bool, error) {
	hash := ast.ContentHash(content)
	if f, ok := r.cache.Get(ctx, p, hash); ok {
		return f, true, nil
	}

	a, err := r.extractor.Analyze(ctx, content, p)
	if err != nil {
		return nil, false, fmt.Errorf("analyze: %w", err)
	}
	r.Prime(ctx, a.Facts)
	return a.Facts, false, nil
}

// context returns the memoized Context when the file set is unchanged.
func (r *Resolver) context(facts []*ast.FileFacts) (*Context, bool) {
	fp := Fingerprint(facts)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memo != nil && r.memo.Fingerprint() == fp {
		contextBuilds.WithLabelValues("reused").Inc()
		return r.memo, true
	}
	r.memo = NewContext(facts)
	contextBuilds.WithLabelValues("built").Inc()
	return r.memo, false
}

// resolveFile records the edges of one file. Panics become errors.
func (r *Resolver) resolveFile(idx index.SymbolIndex, lookup map[index.SymbolKey]*index.SymbolEntry,
	rc *Context, f *ast.FileFacts, content []byte, stats *Stats) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	var lines []string
	for _, us := range f.UseSites {
		targetKey, ok := rc.ResolveReference(f.FilePath, us)
		if !ok {
			continue
		}
		target, tracked := lookup[targetKey]
		if !tracked {
			r.logger.Debug("reference target not tracked",
				slog.String("file", f.FilePath),
				slog.Int("line", us.Line),
				slog.String("error", fmt.Errorf("%w: %s", ErrReferenceResolution, targetKey).Error()))
			continue
		}

		source := r.container(idx, lookup, f.FilePath, us, stats)
		if source.Key() == target.Key() {
			continue
		}

		if source.AddDependency(index.DependencyEdge{
			TargetName:     target.Name,
			TargetFilePath: target.FilePath,
			Line:           us.Line,
		}) {
			stats.EdgesAdded++
		}

		if lines == nil {
			lines = strings.Split(string(content), "\n")
		}
		target.AddDependent(index.DependentEdge{
			SourceName:     source.Name,
			SourceFilePath: source.FilePath,
			Line:           us.Line,
			ContextSnippet: snippetAround(lines, us.Line, r.contextLines),
		})
	}
	return nil
}

// container returns the innermost tracked container of a use-site, or the
// file's module symbol, creating it on first use.
func (r *Resolver) container(idx index.SymbolIndex, lookup map[index.SymbolKey]*index.SymbolEntry,
	filePath string, us ast.UseSite, stats *Stats) *index.SymbolEntry {
	for i := len(us.Containers) - 1; i >= 0; i-- {
		if e, ok := lookup[index.SymbolKey{FilePath: filePath, Name: us.Containers[i]}]; ok {
			return e
		}
	}

	key := index.SymbolKey{FilePath: filePath, Name: index.ModuleSymbolName}
	if e, ok := lookup[key]; ok {
		return e
	}
	m, created := idx.EnsureModuleSymbol(filePath)
	if created {
		stats.ModuleSymbols++
	}
	lookup[key] = m
	return m
}

func (r *Resolver) fileError(stats *Stats, filePath string, err error) {
	stats.FileErrors++
	ferr := &FileError{FilePath: filePath, Err: err}
	r.logger.Warn("skipping file during resolution",
		slog.String("file", filePath),
		slog.String("error", ferr.Error()))
}

// snippetAround returns up to n lines on each side of the 1-indexed line.
func snippetAround(lines []string, line, n int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	from := line - 1 - n
	if from < 0 {
		from = 0
	}
	to := line + n
	if to > len(lines) {
		to = len(lines)
	}
	return strings.Join(lines[from:to], "\n")
}

// projectFiles returns the sorted, normalized analyzable files of allFiles
// and idx.
func projectFiles(idx index.SymbolIndex, allFiles []string, root string) []string {
	seen := make(map[string]struct{}, len(allFiles)+len(idx))
	for _, p := range allFiles {
		n := index.NormalizePath(root, p)
		if ast.IsAnalyzable(n) {
			seen[n] = struct{}{}
		}
	}
	for p := range idx {
		seen[p] = struct{}{}
	}

	files := make([]string, 0, len(seen))
	for p := range seen {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}
