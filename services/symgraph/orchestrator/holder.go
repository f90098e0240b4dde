// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// IndexHolder provides thread-safe access to the current index snapshot.
//
// Description:
//
//	Readers get the current snapshot and must treat it as read-only.
//	Writers go through Apply, which runs one update at a time and swaps in
//	the whole result, so readers never observe a half-updated index.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type IndexHolder struct {
	mu        sync.RWMutex
	idx       index.SymbolIndex
	version   uint64
	updatedAt time.Time

	// writeMu serializes Apply calls.
	writeMu sync.Mutex
}

// NewIndexHolder creates a holder with an initial snapshot.
func NewIndexHolder(idx index.SymbolIndex) *IndexHolder {
	h := &IndexHolder{}
	if idx != nil {
		h.Set(idx)
	}
	return h
}

// Get returns the current snapshot. Callers must not modify it.
func (h *IndexHolder) Get() index.SymbolIndex {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idx
}

// Set replaces the current snapshot.
func (h *IndexHolder) Set(idx index.SymbolIndex) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.idx = idx
	h.version++
	h.updatedAt = time.Now()
}

// Version returns how many snapshots have been installed, and when the
// latest one was.
func (h *IndexHolder) Version() (uint64, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version, h.updatedAt
}

// Apply computes a new snapshot from the current one and installs it.
//
// fn receives the current snapshot and must not modify it. If fn returns an
// error the current snapshot is kept.
func (h *IndexHolder) Apply(ctx context.Context, fn func(ctx context.Context, current index.SymbolIndex) (index.SymbolIndex, error)) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	next, err := fn(ctx, h.Get())
	if err != nil {
		return err
	}
	h.Set(next)
	return nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
