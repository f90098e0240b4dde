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
	"time"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/symgraph/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Files     int       `json:"files"`
	Symbols   int       `json:"symbols"`
	Edges     int       `json:"edges"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FilesResponse is returned by GET /v1/symgraph/files.
type FilesResponse struct {
	Files []string `json:"files"`
}

// FileResponse is returned by GET /v1/symgraph/files/*path.
type FileResponse struct {
	FilePath string               `json:"filePath"`
	Symbols  []*index.SymbolEntry `json:"symbols"`
}

// SymbolsRequest holds the query of GET /v1/symgraph/symbols.
type SymbolsRequest struct {
	Name string `form:"name" binding:"required"`
	File string `form:"file"`
}

// SymbolsResponse lists the entries matching a name.
type SymbolsResponse struct {
	Name    string               `json:"name"`
	Symbols []*index.SymbolEntry `json:"symbols"`
}

// EdgeQuery holds the optional query of the edge endpoints.
type EdgeQuery struct {
	// File restricts matches to one declaring file.
	File string `form:"file"`
}

// DependentsResult is the reverse edge set of one matching entry.
type DependentsResult struct {
	Name       string                `json:"name"`
	FilePath   string                `json:"filePath"`
	Dependents []index.DependentEdge `json:"dependents"`
}

// DependenciesResult is the forward edge set of one matching entry.
type DependenciesResult struct {
	Name      string                 `json:"name"`
	FilePath  string                 `json:"filePath"`
	DependsOn []index.DependencyEdge `json:"dependsOn"`
}

// DependentsResponse is returned by GET /v1/symgraph/symbols/:name/dependents.
type DependentsResponse struct {
	Name    string             `json:"name"`
	Results []DependentsResult `json:"results"`
}

// DependenciesResponse is returned by GET /v1/symgraph/symbols/:name/dependencies.
type DependenciesResponse struct {
	Name    string               `json:"name"`
	Results []DependenciesResult `json:"results"`
}
