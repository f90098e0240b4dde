// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves a read-only HTTP view of the current symbol index.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/orchestrator"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/telemetry"
)

// Handlers serves queries against the snapshot held by an IndexHolder.
//
// Thread Safety:
//
//	Safe for concurrent use. Each request reads one snapshot.
type Handlers struct {
	holder *orchestrator.IndexHolder
	logger *slog.Logger
}

// NewHandlers creates handlers over holder.
func NewHandlers(holder *orchestrator.IndexHolder, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = orchestrator.NullLogger()
	}
	return &Handlers{holder: holder, logger: logger}
}

// snapshot returns the current index, or responds 503 and returns false.
func (h *Handlers) snapshot(c *gin.Context) (index.SymbolIndex, bool) {
	idx := h.holder.Get()
	if idx == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "index not built yet",
			Code:  "INDEX_NOT_READY",
		})
		return nil, false
	}
	return idx, true
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler))
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

// HandleHealth handles GET /v1/symgraph/health.
//
// Response:
//
//	200 OK: HealthResponse with status "ok", or "building" before the first
//	snapshot is installed.
func (h *Handlers) HandleHealth(c *gin.Context) {
	version, updatedAt := h.holder.Version()
	idx := h.holder.Get()
	status := "ok"
	if idx == nil {
		status = "building"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Files:     len(idx),
		Symbols:   idx.Len(),
		Edges:     idx.EdgeCount(),
		Version:   version,
		UpdatedAt: updatedAt,
	})
}

// HandleFiles handles GET /v1/symgraph/files.
func (h *Handlers) HandleFiles(c *gin.Context) {
	idx, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, FilesResponse{Files: idx.Files()})
}

// HandleFile handles GET /v1/symgraph/files/*path.
//
// Response:
//
//	200 OK: FileResponse
//	404 Not Found: the file is not indexed
func (h *Handlers) HandleFile(c *gin.Context) {
	idx, ok := h.snapshot(c)
	if !ok {
		return
	}
	p := index.NormalizePath("", strings.TrimPrefix(c.Param("path"), "/"))
	entries, found := idx[p]
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not indexed: " + p, Code: "FILE_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, FileResponse{FilePath: p, Symbols: entries})
}

// HandleSymbols handles GET /v1/symgraph/symbols?name=NAME[&file=PATH].
//
// Response:
//
//	200 OK: SymbolsResponse (may be empty)
//	400 Bad Request: name missing
func (h *Handlers) HandleSymbols(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSymbols")

	var req SymbolsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter name is required", Code: "INVALID_REQUEST"})
		return
	}
	idx, ok := h.snapshot(c)
	if !ok {
		return
	}

	matches := filterFile(idx.Find(req.Name), req.File)
	logger.Debug("symbol lookup", slog.String("name", req.Name), slog.Int("matches", len(matches)))
	c.JSON(http.StatusOK, SymbolsResponse{Name: req.Name, Symbols: matches})
}

// HandleDependents handles GET /v1/symgraph/symbols/:name/dependents.
//
// Response:
//
//	200 OK: DependentsResponse, one result per matching declaration
//	404 Not Found: no declaration has that name
func (h *Handlers) HandleDependents(c *gin.Context) {
	matches, name, ok := h.matches(c, "HandleDependents")
	if !ok {
		return
	}
	resp := DependentsResponse{Name: name, Results: make([]DependentsResult, 0, len(matches))}
	for _, e := range matches {
		resp.Results = append(resp.Results, DependentsResult{Name: e.Name, FilePath: e.FilePath, Dependents: e.Dependents})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDependencies handles GET /v1/symgraph/symbols/:name/dependencies.
//
// Response:
//
//	200 OK: DependenciesResponse, one result per matching declaration
//	404 Not Found: no declaration has that name
func (h *Handlers) HandleDependencies(c *gin.Context) {
	matches, name, ok := h.matches(c, "HandleDependencies")
	if !ok {
		return
	}
	resp := DependenciesResponse{Name: name, Results: make([]DependenciesResult, 0, len(matches))}
	for _, e := range matches {
		resp.Results = append(resp.Results, DependenciesResult{Name: e.Name, FilePath: e.FilePath, DependsOn: e.DependsOn})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) matches(c *gin.Context, handler string) ([]*index.SymbolEntry, string, bool) {
	logger := h.requestLogger(c, handler)
	name := c.Param("name")

	var q EdgeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters", Code: "INVALID_REQUEST"})
		return nil, name, false
	}
	idx, ok := h.snapshot(c)
	if !ok {
		return nil, name, false
	}

	matches := filterFile(idx.Find(name), q.File)
	if len(matches) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "symbol not found: " + name, Code: "SYMBOL_NOT_FOUND"})
		return nil, name, false
	}
	return matches, name, true
}

func filterFile(entries []*index.SymbolEntry, file string) []*index.SymbolEntry {
	if file == "" {
		if entries == nil {
			return []*index.SymbolEntry{}
		}
		return entries
	}
	file = index.NormalizePath("", file)
	out := make([]*index.SymbolEntry, 0, len(entries))
	for _, e := range entries {
		if e.FilePath == file {
			out = append(out, e)
		}
	}
	return out
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
