// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrIndexNotFound indicates that a persisted index was required but does
// not exist. It is never treated as an empty index.
var ErrIndexNotFound = errors.New("symbol index not found")

// DefaultIndexPath is the index location relative to the project root.
const DefaultIndexPath = ".cursor-crawl/symbol-index.json"

// Store persists and loads a SymbolIndex.
type Store interface {
	// Load returns the persisted index or an error wrapping ErrIndexNotFound.
	Load(ctx context.Context) (SymbolIndex, error)

	// Save persists the index, replacing any previous version.
	Save(ctx context.Context, idx SymbolIndex) error
}

// JSONStore persists the index as a single JSON document.
//
// # Description
//
// The document is a JSON object keyed by normalized file path whose values
// are arrays of SymbolEntry. Writes go to a temporary file in the same
// directory that is then renamed over the target, so a crash mid-write never
// leaves a truncated index behind.
//
// # Thread Safety
//
// Safe for concurrent Load calls. Concurrent Save calls race on the final
// rename; the last one wins and the file is always complete.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store writing to path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// NewProjectStore creates a store at DefaultIndexPath under root.
func NewProjectStore(root string) *JSONStore {
	return NewJSONStore(filepath.Join(root, filepath.FromSlash(DefaultIndexPath)))
}

// Path returns the file the store reads and writes.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the index from disk.
func (s *JSONStore) Load(ctx context.Context) (SymbolIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.path)
		}
		return nil, fmt.Errorf("reading index %s: %w", s.path, err)
	}

	idx := New()
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", s.path, err)
	}
	idx.Normalize()
	return idx, nil
}

// Save writes the index to disk atomically.
func (s *JSONStore) Save(ctx context.Context, idx SymbolIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.Normalize()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".symbol-index-*.json")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

var _ Store = (*JSONStore)(nil)
