// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator builds and incrementally updates the symbol index.
//
// An Indexer owns one SymbolIndex for the duration of a Build or Update
// call. Update works on a deep copy and only hands it back once every step
// has succeeded; on any failure the caller gets its original index back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/resolve"
)

// DependencyResolver records edges between the entries of an index.
type DependencyResolver interface {
	Resolve(ctx context.Context, idx index.SymbolIndex, allFiles []string, root string) error
}

// factPrimer is implemented by resolvers that accept facts produced during
// extraction, so files are not parsed twice.
type factPrimer interface {
	Prime(ctx context.Context, facts *ast.FileFacts)
}

// Config configures an Indexer.
type Config struct {
	// MaxFiles caps the number of files processed per run. Files beyond the
	// cap are dropped with a warning. Default: 10000.
	MaxFiles int

	// Workers is the number of files read and extracted concurrently.
	// Default: 4.
	Workers int

	// PruneModuleSymbols removes module symbols left with no edges after
	// resolution. Default: false.
	PruneModuleSymbols bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxFiles: 10000,
		Workers:  4,
	}
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) IndexerOption {
	return func(ix *Indexer) {
		ix.config = cfg
	}
}

// WithMaxFiles sets Config.MaxFiles.
func WithMaxFiles(n int) IndexerOption {
	return func(ix *Indexer) {
		ix.config.MaxFiles = n
	}
}

// WithWorkers sets Config.Workers.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		ix.config.Workers = n
	}
}

// WithModuleSymbolPruning sets Config.PruneModuleSymbols.
func WithModuleSymbolPruning(enabled bool) IndexerOption {
	return func(ix *Indexer) {
		ix.config.PruneModuleSymbols = enabled
	}
}

// WithExtractor sets the extractor.
func WithExtractor(x *ast.Extractor) IndexerOption {
	return func(ix *Indexer) {
		if x != nil {
			ix.extractor = x
		}
	}
}

// WithResolver sets the dependency resolver.
func WithResolver(r DependencyResolver) IndexerOption {
	return func(ix *Indexer) {
		if r != nil {
			ix.resolver = r
		}
	}
}

// WithStore sets where the index is persisted.
func WithStore(s index.Store) IndexerOption {
	return func(ix *Indexer) {
		if s != nil {
			ix.store = s
		}
	}
}

// Indexer builds and updates the symbol index of one project.
//
// Thread Safety:
//
//	Build and Update may run concurrently on different indexes, but they
//	share the persisted store; callers that persist should serialize runs
//	(IndexHolder.Apply does).
type Indexer struct {
	root      string
	config    Config
	extractor *ast.Extractor
	resolver  DependencyResolver
	store     index.Store
	logger    *slog.Logger
}

// NewIndexer creates an Indexer for the project at root.
//
// Description:
//
//	Defaults: an ast.Extractor, a resolve.Resolver sharing that extractor
//	and an in-memory fact cache, and a JSON store at
//	<root>/.cursor-crawl/symbol-index.json.
func NewIndexer(root string, opts ...IndexerOption) *Indexer {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ix := &Indexer{
		root:      root,
		config:    DefaultConfig(),
		extractor: ast.NewExtractor(),
		store:     index.NewProjectStore(root),
		logger:    NullLogger(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.resolver == nil {
		ix.resolver = resolve.NewResolver(
			resolve.WithExtractor(ix.extractor),
			resolve.WithLogger(ix.logger),
		)
	}
	if ix.config.Workers <= 0 {
		ix.config.Workers = 1
	}
	return ix
}

// Root returns the absolute project root.
func (ix *Indexer) Root() string {
	return ix.root
}

// Load returns the persisted index.
//
// Outputs:
//
//	index.SymbolIndex - The index.
//	error - Wraps index.ErrIndexNotFound if nothing has been persisted.
func (ix *Indexer) Load(ctx context.Context) (index.SymbolIndex, error) {
	return ix.store.Load(ctx)
}

// Build extracts, resolves and persists a fresh index.
//
// Description:
//
//	Every analyzable file in files is read and extracted by a bounded
//	worker pool; results are assembled in file order by the calling
//	goroutine. Documentation from a previously persisted index is merged
//	forward by (name, kind) before edges are resolved over the full file
//	list. Unreadable and unparsable files are logged and left out.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per file.
//	files - Project files, absolute or relative to the root.
//
// Outputs:
//
//	index.SymbolIndex - The new index.
//	error - Context cancellation or a persistence failure.
func (ix *Indexer) Build(ctx context.Context, files []string) (idx index.SymbolIndex, err error) {
	runID := uuid.NewString()
	logger := ix.logger.With(slog.String("run_id", runID), slog.String("op", "build"))
	start := time.Now()

	files = ix.prepareFiles(logger, files)
	ctx, span := startRunSpan(ctx, "Build", runID, len(files))
	defer func() {
		recordRunMetrics(ctx, "build", time.Since(start), idx.Len(), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger.Info("starting index build", slog.Int("file_count", len(files)))

	analyses, err := ix.extractAll(ctx, logger, files)
	if err != nil {
		return nil, err
	}

	idx = index.New()
	for i, p := range files {
		a := analyses[i]
		if a == nil {
			continue
		}
		idx[p] = a.Entries
		ix.prime(ctx, a.Facts)
	}

	if previous, loadErr := ix.store.Load(ctx); loadErr == nil {
		merged := 0
		for p, entries := range idx {
			merged += index.MergeDocumentation(previous[p], entries)
		}
		logger.Debug("merged documentation from previous index", slog.Int("entries", merged))
	} else if !errors.Is(loadErr, index.ErrIndexNotFound) {
		logger.Warn("previous index unreadable, documentation not merged",
			slog.String("error", loadErr.Error()))
	}

	if err := ix.resolver.Resolve(ctx, idx, files, ix.root); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if ix.config.PruneModuleSymbols {
		idx.PruneEmptyModuleSymbols()
	}

	if err := ix.store.Save(ctx, idx); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	span.SetAttributes(
		attribute.Int("symgraph.symbol_count", idx.Len()),
		attribute.Int("symgraph.edge_count", idx.EdgeCount()),
	)
	logger.Info("index build complete",
		slog.Int("files", len(idx)),
		slog.Int("symbols", idx.Len()),
		slog.Int("edges", idx.EdgeCount()),
		slog.Duration("duration", time.Since(start)))
	return idx, nil
}

// Update applies one file change to existing and persists the result.
//
// Description:
//
//	All work happens on a deep copy of existing. If changedFile no longer
//	exists, its entries and every edge referencing it are removed.
//	Otherwise its entries are replaced by a fresh extraction carrying
//	forward documentation by (name, kind), stale edges into the file are
//	stripped in both directions, and edges are re-resolved over the whole
//	file list. existing itself is never modified.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	existing - The current index. Treated as read-only.
//	changedFile - The changed file, absolute or relative to the root.
//	files - The current project file list.
//
// Outputs:
//
//	index.SymbolIndex - The updated index, or existing on failure.
//	error - An *UpdateError wrapping ErrIncrementalUpdate on failure.
func (ix *Indexer) Update(ctx context.Context, existing index.SymbolIndex, changedFile string, files []string) (result index.SymbolIndex, err error) {
	runID := uuid.NewString()
	rel := index.NormalizePath(ix.root, changedFile)
	logger := ix.logger.With(
		slog.String("run_id", runID),
		slog.String("op", "update"),
		slog.String("file", rel))
	start := time.Now()

	ctx, span := startRunSpan(ctx, "Update", runID, len(files))
	span.SetAttributes(attribute.String("symgraph.changed_file", rel))

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			err = &UpdateError{ChangedFile: rel, RunID: runID, Err: err}
			result = existing
			logger.Error("incremental update failed, keeping previous index",
				slog.String("error", err.Error()))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		recordRunMetrics(ctx, "update", time.Since(start), result.Len(), err == nil)
		span.End()
	}()

	updated, err := ix.update(ctx, logger, existing, rel, files)
	if err != nil {
		return existing, err
	}

	logger.Info("incremental update complete",
		slog.Int("symbols", updated.Len()),
		slog.Int("edges", updated.EdgeCount()),
		slog.Duration("duration", time.Since(start)))
	return updated, nil
}

func (ix *Indexer) update(ctx context.Context, logger *slog.Logger, existing index.SymbolIndex, rel string, files []string) (index.SymbolIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update canceled: %w", err)
	}

	working := existing.Clone()
	if working == nil {
		working = index.New()
	}

	abs := filepath.Join(ix.root, filepath.FromSlash(rel))
	content, readErr := os.ReadFile(abs)
	if errors.Is(readErr, fs.ErrNotExist) {
		working.RemoveFile(rel)
		stripped := working.StripEdgesTo(rel)
		if ix.config.PruneModuleSymbols {
			working.PruneEmptyModuleSymbols()
		}
		logger.Info("file deleted, removed from index", slog.Int("edges_stripped", stripped))

		if err := ix.store.Save(ctx, working); err != nil {
			return nil, fmt.Errorf("persist index: %w", err)
		}
		return working, nil
	}
	if readErr != nil {
		return nil, fmt.Errorf("read %s: %w", rel, readErr)
	}

	old := working.RemoveFile(rel)
	stripped := working.StripEdgesTo(rel)

	if ast.IsAnalyzable(rel) && !resolve.IsExternalPath(rel) {
		a, err := ix.extractor.Analyze(ctx, content, rel)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("extract %s: %w", rel, ctx.Err())
		case err != nil:
			// Same as Build: the file contributes no entries until it extracts cleanly.
			logger.Warn("skipping changed file that failed extraction",
				slog.String("error", err.Error()),
				slog.Int("edges_stripped", stripped))
		default:
			carried := index.MergeDocumentation(old, a.Entries)
			working[rel] = a.Entries
			ix.prime(ctx, a.Facts)
			logger.Debug("re-extracted changed file",
				slog.Int("entries", len(a.Entries)),
				slog.Int("documentation_carried", carried),
				slog.Int("edges_stripped", stripped))
		}
	}

	files = ix.prepareFiles(logger, append(append([]string(nil), files...), rel))
	if err := ix.resolver.Resolve(ctx, working, files, ix.root); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if ix.config.PruneModuleSymbols {
		working.PruneEmptyModuleSymbols()
	}

	if err := ix.store.Save(ctx, working); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return working, nil
}

// extractAll reads and analyzes files with a bounded worker pool.
//
// The returned slice is parallel to files; entries are nil for files that
// were skipped. Only context errors are returned.
func (ix *Indexer) extractAll(ctx context.Context, logger *slog.Logger, files []string) ([]*ast.Analysis, error) {
	analyses := make([]*ast.Analysis, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Workers)

	for i, p := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(p)))
			if err != nil {
				logger.Warn("skipping unreadable file",
					slog.String("file", p),
					slog.String("error", err.Error()))
				return nil
			}
			a, err := ix.extractor.Analyze(gctx, content, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("skipping file that failed extraction",
					slog.String("file", p),
					slog.String("error", err.Error()))
				return nil
			}
			analyses[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extraction canceled: %w", err)
	}
	return analyses, nil
}

// prepareFiles normalizes, filters to analyzable files, deduplicates, sorts
// and caps the file list.
func (ix *Indexer) prepareFiles(logger *slog.Logger, files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		p := index.NormalizePath(ix.root, f)
		if !ast.IsAnalyzable(p) || resolve.IsExternalPath(p) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)

	if limit := ix.config.MaxFiles; limit > 0 && len(out) > limit {
		logger.Warn("truncating file list",
			slog.Int("file_count", len(out)),
			slog.Int("max_files", limit),
			slog.String("error", fmt.Errorf("%w: %d files, limit %d", ErrProjectTooLarge, len(out), limit).Error()))
		out = out[:limit]
	}
	return out
}

func (ix *Indexer) prime(ctx context.Context, facts *ast.FileFacts) {
	if p, ok := ix.resolver.(factPrimer); ok {
		p.Prime(ctx, facts)
	}
}
