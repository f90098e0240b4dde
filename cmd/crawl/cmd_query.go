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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spginebaugh/cursor-crawl/pkg/ux"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// ErrSymbolNotFound is returned when no indexed declaration has the name.
var ErrSymbolNotFound = errors.New("symbol not found")

// queryFlags narrow a symbol lookup.
type queryFlags struct {
	file string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.file, "file", "", "Only match declarations in this file")
}

// lookup returns the entries named name, optionally restricted to one file.
func (a *app) lookup(cmd *cobra.Command, name string, q queryFlags) ([]*index.SymbolEntry, error) {
	idx, err := a.loadIndex(cmd.Context())
	if err != nil {
		return nil, err
	}
	var out []*index.SymbolEntry
	file := index.NormalizePath(a.root, q.file)
	for _, e := range idx.Find(name) {
		if q.file == "" || e.FilePath == file {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return out, nil
}

func newShowCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "show SYMBOL",
		Short: "Show a symbol with its dependencies and dependents",
		Long: `Show every declaration named SYMBOL. Methods are named Class.method.

Examples:
  crawl show parseConfig
  crawl show Server.start --json
  crawl show helper --file src/util.ts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.lookup(cmd, args[0], q)
			if err != nil {
				return err
			}
			if a.flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			p := ux.NewPrinter(cmd.OutOrStdout())
			for i, e := range entries {
				if i > 0 {
					p.Blank()
				}
				printEntry(p, e)
			}
			return nil
		},
	}
	q.register(cmd)
	return cmd
}

func newCallersCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "callers SYMBOL",
		Short: "List the dependents of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.lookup(cmd, args[0], q)
			if err != nil {
				return err
			}
			var edges []index.DependentEdge
			for _, e := range entries {
				edges = append(edges, e.Dependents...)
			}
			if a.flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), nonNil(edges))
			}
			p := ux.NewPrinter(cmd.OutOrStdout())
			for _, d := range edges {
				p.Line(0, fmt.Sprintf("%s:%d  %s", d.SourceFilePath, d.Line, p.Bold(d.SourceName)))
			}
			return nil
		},
	}
	q.register(cmd)
	return cmd
}

func newDepsCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "deps SYMBOL",
		Short: "List the dependencies of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.lookup(cmd, args[0], q)
			if err != nil {
				return err
			}
			var edges []index.DependencyEdge
			for _, e := range entries {
				edges = append(edges, e.DependsOn...)
			}
			if a.flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), nonNil(edges))
			}
			p := ux.NewPrinter(cmd.OutOrStdout())
			for _, d := range edges {
				p.Line(0, fmt.Sprintf("%s  %s", d.TargetFilePath, p.Bold(d.TargetName))+p.Dim(fmt.Sprintf(" (line %d)", d.Line)))
			}
			return nil
		},
	}
	q.register(cmd)
	return cmd
}

func printEntry(p *ux.Printer, e *index.SymbolEntry) {
	p.Title(fmt.Sprintf("%s %s", e.Kind, e.Name))
	p.Muted(2, fmt.Sprintf("%s:%d:%d", e.FilePath, e.Location.Line, e.Location.Character))
	if !index.IsPlaceholderDocumentation(e.Documentation) {
		p.Line(2, strings.ReplaceAll(e.Documentation, "\n", "\n  "))
	}
	if e.Snippet != "" {
		p.Muted(2, "> "+firstLine(e.Snippet))
	}
	p.Subtitle(2, fmt.Sprintf("depends on (%d)", len(e.DependsOn)))
	for _, d := range e.DependsOn {
		p.Line(4, fmt.Sprintf("%s %s  %s", p.Icon(ux.IconArrow), d.TargetFilePath, p.Bold(d.TargetName))+p.Dim(fmt.Sprintf(" (line %d)", d.Line)))
	}
	p.Subtitle(2, fmt.Sprintf("dependents (%d)", len(e.Dependents)))
	for _, d := range e.Dependents {
		p.Line(4, fmt.Sprintf("%s %s:%d  %s", p.Icon(ux.IconBullet), d.SourceFilePath, d.Line, p.Bold(d.SourceName)))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
