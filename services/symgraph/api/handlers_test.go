// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/orchestrator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testIndex is foo (a.ts) depending on bar (b.ts), plus a second bar in c.ts.
func testIndex() index.SymbolIndex {
	foo := index.NewSymbolEntry("foo", index.SymbolKindFunction, "src/a.ts", index.Location{Line: 3, Character: 16}, "export function foo() {")
	bar := index.NewSymbolEntry("bar", index.SymbolKindFunction, "src/b.ts", index.Location{Line: 1, Character: 16}, "export function bar() {}")
	otherBar := index.NewSymbolEntry("bar", index.SymbolKindVariable, "src/c.ts", index.Location{Line: 1, Character: 6}, "const bar = 1;")

	foo.AddDependency(index.DependencyEdge{TargetName: "bar", TargetFilePath: "src/b.ts", Line: 4})
	bar.AddDependent(index.DependentEdge{SourceName: "foo", SourceFilePath: "src/a.ts", Line: 4, ContextSnippet: "  bar();"})

	return index.SymbolIndex{
		"src/a.ts": {foo},
		"src/b.ts": {bar},
		"src/c.ts": {otherBar},
	}
}

func setupRouter(idx index.SymbolIndex) *gin.Engine {
	return NewRouter(NewHandlers(orchestrator.NewIndexHolder(idx), nil), "test", nil)
}

func get(t *testing.T, router http.Handler, url string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestHandleHealth(t *testing.T) {
	var resp HealthResponse
	w := get(t, setupRouter(testIndex()), "/v1/symgraph/health", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Files)
	assert.Equal(t, 3, resp.Symbols)
	assert.Equal(t, 1, resp.Edges)
	assert.Equal(t, uint64(1), resp.Version)
}

func TestHandleHealth_NotBuilt(t *testing.T) {
	var resp HealthResponse
	w := get(t, setupRouter(nil), "/v1/symgraph/health", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "building", resp.Status)

	w = get(t, setupRouter(nil), "/v1/symgraph/files", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleFiles(t *testing.T) {
	var resp FilesResponse
	w := get(t, setupRouter(testIndex()), "/v1/symgraph/files", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"src/a.ts", "src/b.ts", "src/c.ts"}, resp.Files)
}

func TestHandleFile(t *testing.T) {
	router := setupRouter(testIndex())

	var resp FileResponse
	w := get(t, router, "/v1/symgraph/files/src/a.ts", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "src/a.ts", resp.FilePath)
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "foo", resp.Symbols[0].Name)
	assert.Equal(t, index.SymbolKindFunction, resp.Symbols[0].Kind)

	w = get(t, router, "/v1/symgraph/files/src/missing.ts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSymbols(t *testing.T) {
	router := setupRouter(testIndex())

	var resp SymbolsResponse
	w := get(t, router, "/v1/symgraph/symbols?name=bar", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Symbols, 2)

	w = get(t, router, "/v1/symgraph/symbols?name=bar&file=src/c.ts", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "src/c.ts", resp.Symbols[0].FilePath)

	w = get(t, router, "/v1/symgraph/symbols?name=nothing", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, resp.Symbols)
	assert.Empty(t, resp.Symbols)

	w = get(t, router, "/v1/symgraph/symbols", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INVALID_REQUEST", errResp.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleDependents(t *testing.T) {
	router := setupRouter(testIndex())

	var resp DependentsResponse
	w := get(t, router, "/v1/symgraph/symbols/bar/dependents?file=src/b.ts", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Results[0].Dependents, 1)
	assert.Equal(t, "foo", resp.Results[0].Dependents[0].SourceName)
	assert.Equal(t, "  bar();", resp.Results[0].Dependents[0].ContextSnippet)

	w = get(t, router, "/v1/symgraph/symbols/bar/dependents", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Results, 2)

	w = get(t, router, "/v1/symgraph/symbols/ghost/dependents", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDependencies(t *testing.T) {
	router := setupRouter(testIndex())

	var resp DependenciesResponse
	w := get(t, router, "/v1/symgraph/symbols/foo/dependencies", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []index.DependencyEdge{{TargetName: "bar", TargetFilePath: "src/b.ts", Line: 4}}, resp.Results[0].DependsOn)
}

func TestNewRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("symgraph_edges_added_total 1\n"))
	})
	router := NewRouter(NewHandlers(orchestrator.NewIndexHolder(testIndex()), nil), "test", metrics)

	w := get(t, router, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "symgraph_edges_added_total")

	w = get(t, setupRouter(testIndex()), "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
