// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spginebaugh/cursor-crawl/pkg/logging"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/config"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/discover"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/orchestrator"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/resolve"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/storage/badger"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitError         = 1
	ExitIndexNotFound = 2
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	root       string
	configPath string
	logLevel   string
	jsonOutput bool
	noCache    bool
}

// app is the state built once per invocation by the root PersistentPreRunE.
type app struct {
	flags  rootFlags
	root   string
	cfg    config.Config
	logger *logging.Logger

	// closers run in reverse order after the command.
	closers []func() error
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Cross-file symbol dependency index for TypeScript and JavaScript",
		Long: `crawl extracts the declarations of every TypeScript and JavaScript file in a
project, links them with dependsOn / dependents edges, and persists the result
as .cursor-crawl/symbol-index.json.

Examples:
  crawl build
  crawl show parseConfig --json
  crawl callers bar
  crawl update src/b.ts
  crawl serve`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.flags.root, "root", ".", "Project root directory")
	flags.StringVar(&a.flags.configPath, "config", "", "Config file (default: <root>/"+config.FileName+")")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.flags.jsonOutput, "json", false, "Output as JSON for scripting")
	flags.BoolVar(&a.flags.noCache, "no-cache", false, "Disable the persistent fact cache")

	cmd.AddCommand(
		newBuildCmd(a),
		newUpdateCmd(a),
		newShowCmd(a),
		newCallersCmd(a),
		newDepsCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) setup(stderr io.Writer) error {
	root, err := filepath.Abs(a.flags.root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	a.root = root

	if a.flags.configPath != "" {
		a.cfg, err = config.LoadFile(a.flags.configPath)
	} else {
		a.cfg, err = config.Load(root)
	}
	if err != nil {
		return err
	}

	if a.flags.logLevel != "" {
		level, err := logging.ParseLevel(a.flags.logLevel)
		if err != nil {
			return err
		}
		a.cfg.Logging.Level = level
	}
	if a.flags.noCache {
		a.cfg.FactCache.Enabled = false
	}

	a.logger = logging.New(logging.Config{
		Level:   a.cfg.Logging.Level,
		JSON:    a.cfg.Logging.JSON,
		LogDir:  a.cfg.Logging.Dir,
		Service: "crawl",
		Output:  stderr,
	})
	a.closers = append(a.closers, a.logger.Close)
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newIndexer wires the indexer from the loaded configuration, opening the
// Badger fact cache when enabled.
func (a *app) newIndexer() (*orchestrator.Indexer, error) {
	log := a.logger.Slog()
	extractor := ast.NewExtractor(
		ast.WithMaxFileSize(a.cfg.Index.MaxFileSize),
		ast.WithLogger(log),
	)

	resolverOpts := []resolve.ResolverOption{
		resolve.WithExtractor(extractor),
		resolve.WithLogger(log),
		resolve.WithContextLines(a.cfg.Index.ContextLines),
	}
	if a.cfg.FactCache.Enabled {
		dbCfg := badger.DefaultConfig(filepath.Join(a.root, filepath.FromSlash(a.cfg.FactCache.Dir)))
		dbCfg.Logger = log
		db, err := badger.Open(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("opening fact cache: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		resolverOpts = append(resolverOpts, resolve.WithFactCache(resolve.NewBadgerFactCache(db, a.cfg.FactCache.TTL)))
	}

	return orchestrator.NewIndexer(a.root,
		orchestrator.WithConfig(orchestrator.Config{
			MaxFiles:           a.cfg.Index.MaxFiles,
			Workers:            a.cfg.Index.Workers,
			PruneModuleSymbols: a.cfg.Index.PruneModuleSymbols,
		}),
		orchestrator.WithExtractor(extractor),
		orchestrator.WithResolver(resolve.NewResolver(resolverOpts...)),
		orchestrator.WithStore(index.NewJSONStore(filepath.Join(a.root, filepath.FromSlash(a.cfg.Index.Path)))),
		orchestrator.WithLogger(log),
	), nil
}

// files lists the project's analyzable files.
func (a *app) files(ctx context.Context) ([]string, error) {
	return discover.Files(ctx, a.root, a.discoverOptions()...)
}

func (a *app) discoverOptions() []discover.Option {
	return []discover.Option{
		discover.WithGit(a.cfg.Discovery.UseGit),
		discover.WithIgnorePatterns(a.cfg.Discovery.Ignore...),
		discover.WithWorkers(a.cfg.Index.Workers),
		discover.WithLogger(a.logger.Slog()),
	}
}

// loadIndex loads the persisted index.
func (a *app) loadIndex(ctx context.Context) (index.SymbolIndex, error) {
	store := index.NewJSONStore(filepath.Join(a.root, filepath.FromSlash(a.cfg.Index.Path)))
	idx, err := store.Load(ctx)
	if errors.Is(err, index.ErrIndexNotFound) {
		return nil, fmt.Errorf("%w (run 'crawl build' first)", err)
	}
	return idx, err
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, index.ErrIndexNotFound):
		return ExitIndexNotFound
	default:
		return ExitError
	}
}
