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
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spginebaugh/cursor-crawl/pkg/ux"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// buildSummary is the --json output of build and update.
type buildSummary struct {
	Files    int    `json:"files"`
	Symbols  int    `json:"symbols"`
	Edges    int    `json:"edges"`
	Index    string `json:"index"`
	Duration string `json:"duration"`
}

func summarize(a *app, idx index.SymbolIndex, d time.Duration) buildSummary {
	return buildSummary{
		Files:    len(idx),
		Symbols:  idx.Len(),
		Edges:    idx.EdgeCount(),
		Index:    filepath.Join(a.root, filepath.FromSlash(a.cfg.Index.Path)),
		Duration: d.Round(time.Millisecond).String(),
	}
}

func printSummary(cmd *cobra.Command, a *app, verb string, s buildSummary) error {
	if a.flags.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	p := ux.NewPrinter(cmd.OutOrStdout())
	p.Success(fmt.Sprintf("%s %d files, %d symbols, %d edges in %s", verb, s.Files, s.Symbols, s.Edges, s.Duration))
	p.Muted(2, s.Index)
	return nil
}

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the symbol index from scratch",
		Long: `Discover every analyzable file, extract declarations, resolve dependency
edges across the whole project and persist the index. Documentation written
into a previous index is carried forward by (name, kind).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			files, err := a.files(ctx)
			if err != nil {
				return err
			}
			ix, err := a.newIndexer()
			if err != nil {
				return err
			}
			idx, err := ix.Build(ctx, files)
			if err != nil {
				return err
			}
			return printSummary(cmd, a, "indexed", summarize(a, idx, time.Since(start)))
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update FILE...",
		Short: "Incrementally update the index for changed files",
		Long: `Re-extract each changed file and re-resolve the project. A file that no longer
exists is removed from the index along with every edge that referenced it.
If an update fails, the persisted index is left as it was.

Examples:
  crawl update src/b.ts
  crawl update src/a.ts src/old.ts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := time.Now()

			idx, err := a.loadIndex(ctx)
			if err != nil {
				return err
			}
			files, err := a.files(ctx)
			if err != nil {
				return err
			}
			ix, err := a.newIndexer()
			if err != nil {
				return err
			}
			for _, f := range args {
				if !filepath.IsAbs(f) {
					f = filepath.Join(a.root, f)
				}
				idx, err = ix.Update(ctx, idx, f, files)
				if err != nil {
					return err
				}
			}
			return printSummary(cmd, a, "updated", summarize(a, idx, time.Since(start)))
		},
	}
}
