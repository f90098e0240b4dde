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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the /symgraph endpoints on rg.
//
// Endpoints:
//
//	GET /v1/symgraph/health - Snapshot version and counts
//	GET /v1/symgraph/files - Indexed file paths
//	GET /v1/symgraph/files/*path - Entries of one file
//	GET /v1/symgraph/symbols?name= - Entries with a name
//	GET /v1/symgraph/symbols/:name/dependents - Reverse edges
//	GET /v1/symgraph/symbols/:name/dependencies - Forward edges
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	symgraph := rg.Group("/symgraph")
	{
		symgraph.GET("/health", h.HandleHealth)
		symgraph.GET("/files", h.HandleFiles)
		symgraph.GET("/files/*path", h.HandleFile)
		symgraph.GET("/symbols", h.HandleSymbols)
		symgraph.GET("/symbols/:name/dependents", h.HandleDependents)
		symgraph.GET("/symbols/:name/dependencies", h.HandleDependencies)
	}
}

// NewRouter builds the engine served by `crawl serve`: recovery, otelgin
// tracing, the /v1 routes and, when metrics is non-nil, /metrics.
func NewRouter(h *Handlers, serviceName string, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	RegisterRoutes(router.Group("/v1"), h)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
