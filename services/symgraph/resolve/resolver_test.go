// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// writeProject writes files under a temp root and returns the root and the
// sorted relative paths.
func writeProject(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	paths := make([]string, 0, len(files))
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return root, paths
}

// extractAll builds an index with no edges, the way a full build does.
func extractAll(t *testing.T, root string, paths []string) index.SymbolIndex {
	t.Helper()
	x := ast.NewExtractor()
	idx := index.New()
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		require.NoError(t, err)
		entries, err := x.Extract(context.Background(), content, p)
		require.NoError(t, err)
		idx[p] = entries
	}
	return idx
}

func resolveProject(t *testing.T, files map[string]string) index.SymbolIndex {
	t.Helper()
	root, paths := writeProject(t, files)
	idx := extractAll(t, root, paths)
	require.NoError(t, NewResolver().Resolve(context.Background(), idx, paths, root))
	return idx
}

func entry(t *testing.T, idx index.SymbolIndex, file, name string) *index.SymbolEntry {
	t.Helper()
	e := idx.Get(index.SymbolKey{FilePath: file, Name: name})
	require.NotNil(t, e, "entry %s:%s", file, name)
	return e
}

const (
	testFileA = `import { bar } from './b';

export function foo() {
  bar();
  foo();
}
`
	testFileB = `export function bar() {}
`
)

func TestResolve_CrossFileEdge(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
	})

	foo := entry(t, idx, "src/a.ts", "foo")
	bar := entry(t, idx, "src/b.ts", "bar")

	require.Len(t, foo.DependsOn, 1)
	assert.Equal(t, index.DependencyEdge{TargetName: "bar", TargetFilePath: "src/b.ts", Line: 4}, foo.DependsOn[0])

	require.Len(t, bar.Dependents, 1)
	assert.Equal(t, "foo", bar.Dependents[0].SourceName)
	assert.Equal(t, "src/a.ts", bar.Dependents[0].SourceFilePath)
	assert.Equal(t, 4, bar.Dependents[0].Line)
	assert.Contains(t, bar.Dependents[0].ContextSnippet, "bar();")
	assert.Contains(t, bar.Dependents[0].ContextSnippet, "export function foo() {")
}

func TestResolve_NoSelfLoops(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
	})

	foo := entry(t, idx, "src/a.ts", "foo")
	for _, d := range foo.DependsOn {
		assert.NotEqual(t, foo.Key(), d.Key())
	}
	assert.Empty(t, foo.Dependents)

	// No top-level references in a.ts, so no module symbol either.
	assert.Len(t, idx["src/a.ts"], 1)
}

func TestResolve_Idempotent(t *testing.T) {
	root, paths := writeProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
		"src/e.ts": "import { bar } from './b';\nbar();\n",
	})
	idx := extractAll(t, root, paths)
	r := NewResolver()

	first, err := r.ResolveWithStats(context.Background(), idx, paths, root)
	require.NoError(t, err)
	assert.Equal(t, 2, first.EdgesAdded)
	assert.Equal(t, 1, first.ModuleSymbols)
	assert.False(t, first.ContextReused)

	snapshot := idx.Clone()

	second, err := r.ResolveWithStats(context.Background(), idx, paths, root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EdgesAdded)
	assert.Equal(t, 0, second.ModuleSymbols)
	assert.True(t, second.ContextReused)
	assert.Equal(t, len(paths), second.FactsReused)

	assert.Equal(t, snapshot, idx)
}

func TestResolve_ModuleSymbol(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/b.ts": testFileB,
		"src/e.ts": "import { bar } from './b';\nbar();\n",
	})

	mod := entry(t, idx, "src/e.ts", index.ModuleSymbolName)
	assert.Equal(t, index.SymbolKindOther, mod.Kind)
	require.Len(t, mod.DependsOn, 1)
	assert.Equal(t, "bar", mod.DependsOn[0].TargetName)

	bar := entry(t, idx, "src/b.ts", "bar")
	require.Len(t, bar.Dependents, 1)
	assert.Equal(t, index.ModuleSymbolName, bar.Dependents[0].SourceName)
}

func TestResolve_AmbientNamesNeverTargets(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/c.ts": `export function logIt(p: Promise<void>) {
  console.log(Object.keys({}));
  return new Map();
}
`,
	})

	for _, entries := range idx {
		for _, e := range entries {
			for _, d := range e.DependsOn {
				assert.False(t, ast.IsAmbientName(d.TargetName), d.TargetName)
			}
		}
	}
	assert.Empty(t, entry(t, idx, "src/c.ts", "logIt").DependsOn)
}

func TestResolve_VendoredTargetsExcluded(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"node_modules/lib/index.ts": "export function dep() {}\n",
		"src/d.ts":                  "import { dep } from '../node_modules/lib/index';\nexport function useDep() { dep(); }\n",
	})

	assert.Empty(t, entry(t, idx, "src/d.ts", "useDep").DependsOn)
	assert.Empty(t, entry(t, idx, "node_modules/lib/index.ts", "dep").Dependents)
}

func TestResolve_BarePackageImportsIgnored(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/a.ts": "import { useState } from 'react';\nexport function Widget() { useState(); }\n",
	})
	assert.Empty(t, entry(t, idx, "src/a.ts", "Widget").DependsOn)
}

func TestResolve_ImportForms(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/b.ts":     testFileB,
		"src/f.ts":     "export default function make() {}\n",
		"src/index.ts": "export { bar } from './b';\n",
		"src/g.ts":     "import make2 from './f';\nexport function useDefault() { make2(); }\n",
		"src/h.ts":     "import { bar } from './index';\nexport function viaIndex() { bar(); }\n",
		"src/m.ts":     "import { bar } from './b.js';\nexport function viaESM() { bar(); }\n",
		"src/k.js":     "const { bar } = require('./b');\nfunction viaRequire() { bar(); }\n",
		"src/n.ts":     "import { bar as renamed } from './b';\nexport function viaAlias() { renamed(); }\n",
		"src/r.ts":     "export { default } from './f';\n",
		"src/s.ts":     "export { bar as default } from './b';\n",
		"src/p.ts":     "import make3 from './r';\nexport function viaDefaultReExport() { make3(); }\n",
		"src/q.ts":     "import bar2 from './s';\nexport function viaAliasedDefault() { bar2(); }\n",
	})

	tests := []struct {
		file, name   string
		targetFile   string
		targetSymbol string
	}{
		{"src/g.ts", "useDefault", "src/f.ts", "make"},
		{"src/h.ts", "viaIndex", "src/b.ts", "bar"},
		{"src/m.ts", "viaESM", "src/b.ts", "bar"},
		{"src/k.js", "viaRequire", "src/b.ts", "bar"},
		{"src/n.ts", "viaAlias", "src/b.ts", "bar"},
		{"src/p.ts", "viaDefaultReExport", "src/f.ts", "make"},
		{"src/q.ts", "viaAliasedDefault", "src/b.ts", "bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry(t, idx, tt.file, tt.name)
			require.Len(t, e.DependsOn, 1)
			assert.Equal(t, tt.targetFile, e.DependsOn[0].TargetFilePath)
			assert.Equal(t, tt.targetSymbol, e.DependsOn[0].TargetName)
		})
	}
}

func TestResolve_ThisMember(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"src/svc.ts": `export class Svc {
  run() {
    return this.help();
  }

  help() {
    return 1;
  }
}
`,
	})

	run := entry(t, idx, "src/svc.ts", "Svc.run")
	require.Len(t, run.DependsOn, 1)
	assert.Equal(t, "Svc.help", run.DependsOn[0].TargetName)
}

func TestResolve_ScriptGlobals(t *testing.T) {
	idx := resolveProject(t, map[string]string{
		"legacy/util.js": "function shared() {}\n",
		"legacy/app.js":  "function main() { shared(); }\n",
	})

	main := entry(t, idx, "legacy/app.js", "main")
	require.Len(t, main.DependsOn, 1)
	assert.Equal(t, index.DependencyEdge{TargetName: "shared", TargetFilePath: "legacy/util.js", Line: 1}, main.DependsOn[0])
}

func TestResolve_MissingFileSkipped(t *testing.T) {
	root, paths := writeProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
	})
	idx := extractAll(t, root, paths)
	idx["src/gone.ts"] = []*index.SymbolEntry{
		index.NewSymbolEntry("ghost", index.SymbolKindFunction, "src/gone.ts", index.Location{Line: 1}, "function ghost() {}"),
	}

	stats, err := NewResolver().ResolveWithStats(context.Background(), idx, paths, root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileErrors)
	assert.Len(t, entry(t, idx, "src/a.ts", "foo").DependsOn, 1)
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewResolver().Resolve(ctx, index.New(), nil, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_ContextLines(t *testing.T) {
	root, paths := writeProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
	})
	idx := extractAll(t, root, paths)
	require.NoError(t, NewResolver(WithContextLines(0)).Resolve(context.Background(), idx, paths, root))

	bar := entry(t, idx, "src/b.ts", "bar")
	require.Len(t, bar.Dependents, 1)
	assert.Equal(t, "  bar();", bar.Dependents[0].ContextSnippet)
}

func TestSnippetAround(t *testing.T) {
	lines := []string{"one", "two", "three", "four", "five"}

	assert.Equal(t, "one\ntwo\nthree", snippetAround(lines, 1, 2))
	assert.Equal(t, "two\nthree\nfour", snippetAround(lines, 3, 1))
	assert.Equal(t, "four\nfive", snippetAround(lines, 5, 1))
	assert.Equal(t, "", snippetAround(lines, 9, 1))
}
