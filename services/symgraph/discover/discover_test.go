// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFiles_AnalyzableOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "index.ts", "export {};")
	writeFile(t, dir, "src/app.tsx", "export {};")
	writeFile(t, dir, "src/legacy/util.js", "function u() {}")
	writeFile(t, dir, "src/esm.mjs", "export {};")
	writeFile(t, dir, "README.md", "# readme")
	writeFile(t, dir, "src/style.css", "body {}")

	files, err := Files(context.Background(), dir, WithGit(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"index.ts", "src/app.tsx", "src/esm.mjs", "src/legacy/util.js"}, files)
}

func TestFiles_SkipsVendoredAndHidden(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/a.ts", "")
	writeFile(t, dir, "node_modules/lib/index.js", "")
	writeFile(t, dir, "src/vendor/dep.js", "")
	writeFile(t, dir, "dist/bundle.js", "")
	writeFile(t, dir, ".cursor-crawl/cache.js", "")
	writeFile(t, dir, "src/.hidden/x.ts", "")

	files, err := Files(context.Background(), dir, WithGit(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)
}

func TestFiles_Gitignore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n*.gen.ts\n")
	writeFile(t, dir, "src/a.ts", "")
	writeFile(t, dir, "src/a.gen.ts", "")
	writeFile(t, dir, "generated/api.ts", "")

	files, err := Files(context.Background(), dir, WithGit(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)
}

func TestFiles_ExtraIgnorePatterns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/a.ts", "")
	writeFile(t, dir, "src/a.test.ts", "")
	writeFile(t, dir, "scripts/tool.js", "")

	files, err := Files(context.Background(), dir, WithGit(false), WithIgnorePatterns("*.test.ts", "scripts/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)
}

func TestFiles_RootNotDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "file.ts", "")

	_, err := Files(context.Background(), filepath.Join(dir, "file.ts"))
	assert.True(t, errors.Is(err, ErrRootNotDirectory))

	_, err = Files(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrRootNotDirectory)
}

func TestFiles_Canceled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Files(ctx, dir, WithGit(false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLister(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.ts", "")

	list := Lister(dir, WithGit(false))
	files, err := list(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, files)

	writeFile(t, dir, "b.ts", "")
	files, err = list(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts", "b.ts"}, files)
}

func TestKeep(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/a.ts", true},
		{"src/a.d.ts", true},
		{"src/a.go", false},
		{"node_modules/x/a.js", false},
		{"a/bower_components/b.js", false},
		{"../outside.ts", false},
		{".eslintrc.js", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, keep(tt.path))
		})
	}
}
