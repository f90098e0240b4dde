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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
)

// Prometheus metrics for the fact cache and context memo.
var (
	factCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_fact_cache_lookups_total",
		Help: "Fact cache lookups by backend and result",
	}, []string{"backend", "result"})

	factCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_fact_cache_errors_total",
		Help: "Fact cache read and write failures by backend",
	}, []string{"backend", "op"})

	contextBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_resolve_context_total",
		Help: "Resolution contexts requested, by whether the memoized one was reused",
	}, []string{"result"})
)

// FactCache stores FileFacts keyed by file path and content hash.
//
// Facts are treated as immutable once stored; callers must not modify a
// value returned by Get.
type FactCache interface {
	// Get returns the facts for filePath whose content hashes to hash.
	Get(ctx context.Context, filePath, hash string) (*ast.FileFacts, bool)

	// Put stores facts under facts.FilePath and facts.Hash.
	Put(ctx context.Context, facts *ast.FileFacts) error
}

// MemoryFactCache is a process-lifetime FactCache.
//
// Only the latest hash per path is kept, so the cache never holds more
// entries than there are files.
//
// Thread Safety: Safe for concurrent use.
type MemoryFactCache struct {
	mu    sync.RWMutex
	facts map[string]*ast.FileFacts
}

// NewMemoryFactCache creates an empty MemoryFactCache.
func NewMemoryFactCache() *MemoryFactCache {
	return &MemoryFactCache{facts: make(map[string]*ast.FileFacts)}
}

// Get implements FactCache.
func (m *MemoryFactCache) Get(_ context.Context, filePath, hash string) (*ast.FileFacts, bool) {
	m.mu.RLock()
	f, ok := m.facts[filePath]
	m.mu.RUnlock()

	if !ok || f.Hash != hash {
		factCacheLookups.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	factCacheLookups.WithLabelValues("memory", "hit").Inc()
	return f, true
}

// Put implements FactCache.
func (m *MemoryFactCache) Put(_ context.Context, facts *ast.FileFacts) error {
	if facts == nil {
		return nil
	}
	m.mu.Lock()
	m.facts[facts.FilePath] = facts
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached files.
func (m *MemoryFactCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.facts)
}

var _ FactCache = (*MemoryFactCache)(nil)
