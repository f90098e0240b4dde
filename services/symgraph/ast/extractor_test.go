// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// Test source code samples (embedded, no file I/O).
const (
	testTSKinds = `export interface Shape {
  area(): number;
}

type Id = string;

enum Color { Red, Green }

export class Circle implements Shape {
  constructor(private r: number) {}

  area(): number {
    return helper(this.r);
  }

  scale = (f: number) => f * this.r;
}

function helper(x: number): number {
  return x * x;
}

const compute = (a: number) => helper(a);

export const LIMIT = 10;

let console = 1;
`

	testTSOverloads = `function pick(a: string): string;
function pick(a: number): number;
function pick(a: any): any { return a; }
`

	testJSFields = `class Button {
  onClick = () => { this.render(); };
  render() {}
}
`

	testTSNested = `function outer() {
  function inner() {}
  const local = () => inner();
  return local;
}
`
)

func names(entries []*index.SymbolEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func entryNamed(entries []*index.SymbolEntry, name string) *index.SymbolEntry {
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func TestExtractor_EmptyFile(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(""), "src/empty.ts")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestExtractor_DeclarationKinds(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testTSKinds), "src/shapes.ts")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Shape", "Id", "Color", "Circle",
		"Circle.constructor", "Circle.area", "Circle.scale",
		"helper", "compute", "LIMIT",
	}, names(entries))

	want := map[string]index.SymbolKind{
		"Shape":        index.SymbolKindInterface,
		"Id":           index.SymbolKindTypeAlias,
		"Color":        index.SymbolKindEnum,
		"Circle":       index.SymbolKindClass,
		"Circle.area":  index.SymbolKindMethod,
		"Circle.scale": index.SymbolKindMethod,
		"helper":       index.SymbolKindFunction,
		"compute":      index.SymbolKindFunction,
		"LIMIT":        index.SymbolKindVariable,
	}
	for name, kind := range want {
		e := entryNamed(entries, name)
		require.NotNil(t, e, name)
		assert.Equal(t, kind, e.Kind, name)
		assert.Equal(t, "src/shapes.ts", e.FilePath)
		assert.Empty(t, e.Documentation)
		assert.NotNil(t, e.DependsOn)
		assert.NotNil(t, e.Dependents)
	}
}

func TestExtractor_Location(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte("\nfunction foo() {}\n"), "a.ts")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, index.Location{Line: 2, Character: 9}, entries[0].Location)
	assert.Equal(t, "function foo() {}", entries[0].Snippet)
}

func TestExtractor_VariableSnippetIsStatement(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testTSKinds), "src/shapes.ts")
	require.NoError(t, err)

	limit := entryNamed(entries, "LIMIT")
	require.NotNil(t, limit)
	assert.True(t, strings.HasPrefix(limit.Snippet, "const LIMIT = 10"))
}

func TestExtractor_AmbientNamesExcluded(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testTSKinds), "src/shapes.ts")
	require.NoError(t, err)
	assert.Nil(t, entryNamed(entries, "console"))
}

func TestExtractor_OverloadsKeepFirst(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testTSOverloads), "pick.ts")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pick", entries[0].Name)
	assert.Equal(t, 1, entries[0].Location.Line)
}

func TestExtractor_JavaScriptFieldMethods(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testJSFields), "ui/button.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"Button", "Button.onClick", "Button.render"}, names(entries))
}

func TestExtractor_NestedDeclarations(t *testing.T) {
	x := NewExtractor()

	entries, err := x.Extract(context.Background(), []byte(testTSNested), "nested.ts")
	require.NoError(t, err)

	// Nested functions are tracked; nested variables are not.
	assert.Equal(t, []string{"outer", "inner"}, names(entries))
}

func TestExtractor_SkippedFiles(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		entries, err := NewExtractor().Extract(context.Background(), []byte("def f(): pass"), "main.py")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("too large", func(t *testing.T) {
		x := NewExtractor(WithMaxFileSize(16))
		entries, err := x.Extract(context.Background(), []byte("function tooLargeToExtract() {}"), "big.ts")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := NewExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "bad.ts")
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewExtractor().Extract(ctx, []byte("function f() {}"), "f.ts")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtractor_MaxFileSizeOption(t *testing.T) {
	assert.Equal(t, int64(DefaultMaxFileSize), NewExtractor().MaxFileSize())
	assert.Equal(t, int64(42), NewExtractor(WithMaxFileSize(42)).MaxFileSize())
	assert.Equal(t, int64(DefaultMaxFileSize), NewExtractor(WithMaxFileSize(-1)).MaxFileSize())
}

func TestExtractor_Concurrent(t *testing.T) {
	x := NewExtractor()
	var wg sync.WaitGroup
	errs := make(chan error, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := x.Extract(context.Background(), []byte(testTSKinds), "src/shapes.ts")
			if err != nil {
				errs <- err
				return
			}
			if len(entries) != 10 {
				errs <- errors.New("unexpected entry count")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestAnalyze_ContentHash(t *testing.T) {
	x := NewExtractor()
	content := []byte("function foo() {}")

	a, err := x.Analyze(context.Background(), content, "a.ts")
	require.NoError(t, err)
	assert.Equal(t, ContentHash(content), a.Facts.Hash)
	assert.Equal(t, "a.ts", a.Facts.FilePath)
	assert.Equal(t, []string{"foo"}, a.Facts.Declared)
	assert.Len(t, a.Facts.Hash, 64)
}

func TestNodeError(t *testing.T) {
	err := &NodeError{FilePath: "a.ts", Line: 3, Column: 4, NodeType: "variable_declarator", Message: "no name"}

	assert.True(t, errors.Is(err, ErrNodeParse))
	assert.Contains(t, err.Error(), "a.ts:3:4")
	assert.Contains(t, err.Error(), "variable_declarator")
}

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"a.ts", LanguageTypeScript, true},
		{"a.d.ts", LanguageTypeScript, true},
		{"a.mts", LanguageTypeScript, true},
		{"A.TSX", LanguageTSX, true},
		{"a.js", LanguageJavaScript, true},
		{"a.cjs", LanguageJavaScript, true},
		{"a.json", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
