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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/storage/badger"
)

// factsSchemaVersion is part of every key. Bump it when FileFacts or the
// fact builder changes so stale entries are never read.
const factsSchemaVersion = "v1"

// DefaultFactTTL expires persisted facts for files that stop changing hash.
const DefaultFactTTL = 30 * 24 * time.Hour

// BadgerFactCache persists FileFacts across process runs.
//
// Entries are keyed by schema version, content hash and path, so a changed
// file simply misses and an unchanged file hits even after a restart.
//
// Thread Safety: Safe for concurrent use.
type BadgerFactCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerFactCache wraps an opened database. A non-positive ttl disables expiry.
func NewBadgerFactCache(db *badger.DB, ttl time.Duration) *BadgerFactCache {
	return &BadgerFactCache{db: db, ttl: ttl}
}

func factKey(filePath, hash string) []byte {
	return []byte("facts/" + factsSchemaVersion + "/" + hash + "/" + filePath)
}

// Get implements FactCache. Storage and decode failures count as misses.
func (b *BadgerFactCache) Get(ctx context.Context, filePath, hash string) (*ast.FileFacts, bool) {
	raw, ok, err := b.db.Get(ctx, factKey(filePath, hash))
	if err != nil {
		factCacheErrors.WithLabelValues("badger", "get").Inc()
		return nil, false
	}
	if !ok {
		factCacheLookups.WithLabelValues("badger", "miss").Inc()
		return nil, false
	}

	var facts ast.FileFacts
	if err := json.Unmarshal(raw, &facts); err != nil {
		factCacheErrors.WithLabelValues("badger", "decode").Inc()
		return nil, false
	}
	factCacheLookups.WithLabelValues("badger", "hit").Inc()
	return &facts, true
}

// Put implements FactCache.
func (b *BadgerFactCache) Put(ctx context.Context, facts *ast.FileFacts) error {
	if facts == nil {
		return nil
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		factCacheErrors.WithLabelValues("badger", "encode").Inc()
		return fmt.Errorf("encode facts for %s: %w", facts.FilePath, err)
	}
	if err := b.db.Set(ctx, factKey(facts.FilePath, facts.Hash), raw, b.ttl); err != nil {
		factCacheErrors.WithLabelValues("badger", "put").Inc()
		return fmt.Errorf("store facts for %s: %w", facts.FilePath, err)
	}
	return nil
}

// Purge removes every cached fact.
func (b *BadgerFactCache) Purge(ctx context.Context) error {
	return b.db.DeletePrefix(ctx, []byte("facts/"))
}

var _ FactCache = (*BadgerFactCache)(nil)
