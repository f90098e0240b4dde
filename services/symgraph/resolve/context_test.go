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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/storage/badger"
)

func facts(path string, declared ...string) *ast.FileFacts {
	return &ast.FileFacts{FilePath: path, Hash: "h-" + path, Declared: declared, TopLevel: declared, IsModule: true}
}

func TestIsExternalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/a.ts", false},
		{"vendor.ts", false},
		{"node_modules/react/index.js", true},
		{"packages/app/node_modules/x/y.ts", true},
		{"lib/vendor/jquery.js", true},
		{"bower_components/a.js", true},
		{"../outside.ts", true},
		{"/abs/a.ts", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExternalPath(tt.path))
		})
	}
}

func TestContext_ResolveModule(t *testing.T) {
	c := NewContext([]*ast.FileFacts{
		facts("src/b.ts"),
		facts("src/util/index.ts"),
		facts("src/types.d.ts"),
		facts("src/legacy.js"),
	})

	tests := []struct {
		from, spec string
		want       string
		ok         bool
	}{
		{"src/a.ts", "./b", "src/b.ts", true},
		{"src/a.ts", "./b.js", "src/b.ts", true},
		{"src/a.ts", "./b.ts", "src/b.ts", true},
		{"src/a.ts", "./util", "src/util/index.ts", true},
		{"src/a.ts", "./types", "src/types.d.ts", true},
		{"src/a.ts", "./legacy", "src/legacy.js", true},
		{"src/deep/a.ts", "../b", "src/b.ts", true},
		{"src/a.ts", "react", "", false},
		{"src/a.ts", "../../escape", "", false},
		{"src/a.ts", "./missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, ok := c.resolveModule(tt.from, tt.spec)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContext_ReExportChains(t *testing.T) {
	leaf := facts("src/leaf.ts", "target")
	mid := facts("src/mid.ts")
	mid.ReExports = []ast.ImportBinding{{Local: ast.ImportNamespace, Imported: ast.ImportNamespace, Source: "./leaf"}}
	top := facts("src/top.ts")
	top.ReExports = []ast.ImportBinding{{Local: "renamed", Imported: "target", Source: "./mid"}}
	user := facts("src/user.ts")
	user.Imports = []ast.ImportBinding{{Local: "x", Imported: "renamed", Source: "./top"}}

	c := NewContext([]*ast.FileFacts{leaf, mid, top, user})

	key, ok := c.ResolveReference("src/user.ts", ast.UseSite{Name: "x", Kind: ast.UsePlain})
	require.True(t, ok)
	assert.Equal(t, index.SymbolKey{FilePath: "src/leaf.ts", Name: "target"}, key)
}

func TestContext_ReExportCycle(t *testing.T) {
	a := facts("src/a.ts")
	a.ReExports = []ast.ImportBinding{{Local: ast.ImportNamespace, Imported: ast.ImportNamespace, Source: "./b"}}
	b := facts("src/b.ts")
	b.ReExports = []ast.ImportBinding{{Local: ast.ImportNamespace, Imported: ast.ImportNamespace, Source: "./a"}}
	user := facts("src/user.ts")
	user.Imports = []ast.ImportBinding{{Local: "x", Imported: "x", Source: "./a"}}

	c := NewContext([]*ast.FileFacts{a, b, user})

	_, ok := c.ResolveReference("src/user.ts", ast.UseSite{Name: "x"})
	assert.False(t, ok)
}

func TestContext_NamespaceImportsUnresolved(t *testing.T) {
	lib := facts("src/lib.ts", "helper")
	user := facts("src/user.ts")
	user.Imports = []ast.ImportBinding{{Local: "lib", Imported: ast.ImportNamespace, Source: "./lib"}}

	c := NewContext([]*ast.FileFacts{lib, user})

	_, ok := c.ResolveReference("src/user.ts", ast.UseSite{Name: "lib"})
	assert.False(t, ok)
}

func TestContext_AmbientNeverResolves(t *testing.T) {
	// Even a project declaration named like an ambient global is not a target.
	c := NewContext([]*ast.FileFacts{facts("src/a.ts", "Promise")})

	_, ok := c.ResolveReference("src/a.ts", ast.UseSite{Name: "Promise"})
	assert.False(t, ok)
}

func TestContext_ScriptGlobalsSkipModulesAndVendored(t *testing.T) {
	module := facts("src/mod.ts", "fromModule")
	script := facts("public/a.js", "fromScript")
	script.IsModule = false
	vendored := facts("vendor/lib.js", "fromVendor")
	vendored.IsModule = false

	c := NewContext([]*ast.FileFacts{module, script, vendored, facts("src/user.ts")})

	_, ok := c.ResolveReference("src/user.ts", ast.UseSite{Name: "fromModule"})
	assert.False(t, ok)
	_, ok = c.ResolveReference("src/user.ts", ast.UseSite{Name: "fromVendor"})
	assert.False(t, ok)

	key, ok := c.ResolveReference("src/user.ts", ast.UseSite{Name: "fromScript"})
	require.True(t, ok)
	assert.Equal(t, "public/a.js", key.FilePath)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a, b := facts("a.ts"), facts("b.ts")

	assert.Equal(t, Fingerprint([]*ast.FileFacts{a, b}), Fingerprint([]*ast.FileFacts{b, a}))

	changed := facts("b.ts")
	changed.Hash = "other"
	assert.NotEqual(t, Fingerprint([]*ast.FileFacts{a, b}), Fingerprint([]*ast.FileFacts{a, changed}))
}

func TestMemoryFactCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFactCache()

	_, ok := c.Get(ctx, "a.ts", "h1")
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, &ast.FileFacts{FilePath: "a.ts", Hash: "h1"}))
	got, ok := c.Get(ctx, "a.ts", "h1")
	require.True(t, ok)
	assert.Equal(t, "h1", got.Hash)

	_, ok = c.Get(ctx, "a.ts", "h2")
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, &ast.FileFacts{FilePath: "a.ts", Hash: "h2"}))
	assert.Equal(t, 1, c.Len())
}

func TestBadgerFactCache(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	c := NewBadgerFactCache(db, time.Hour)

	in := &ast.FileFacts{
		FilePath: "src/a.ts",
		Hash:     "abc",
		Declared: []string{"foo"},
		TopLevel: []string{"foo"},
		IsModule: true,
		Imports:  []ast.ImportBinding{{Local: "bar", Imported: "bar", Source: "./b"}},
		UseSites: []ast.UseSite{{Name: "bar", Line: 4, Column: 2, Containers: []string{"foo"}}},
	}
	require.NoError(t, c.Put(ctx, in))

	out, ok := c.Get(ctx, "src/a.ts", "abc")
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = c.Get(ctx, "src/a.ts", "changed")
	assert.False(t, ok)

	require.NoError(t, c.Purge(ctx))
	_, ok = c.Get(ctx, "src/a.ts", "abc")
	assert.False(t, ok)
}

func TestResolver_UsesBadgerCacheAcrossInstances(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	root, paths := writeProject(t, map[string]string{
		"src/a.ts": testFileA,
		"src/b.ts": testFileB,
	})

	first := NewResolver(WithFactCache(NewBadgerFactCache(db, 0)))
	_, err = first.ResolveWithStats(context.Background(), extractAll(t, root, paths), paths, root)
	require.NoError(t, err)

	second := NewResolver(WithFactCache(NewBadgerFactCache(db, 0)))
	stats, err := second.ResolveWithStats(context.Background(), extractAll(t, root, paths), paths, root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FactsReused)
	assert.Equal(t, 1, stats.EdgesAdded)
}

func TestFileError(t *testing.T) {
	cause := errors.New("boom")
	err := &FileError{FilePath: "src/a.ts", Err: cause}

	assert.ErrorIs(t, err, ErrFileResolution)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "src/a.ts")
}
