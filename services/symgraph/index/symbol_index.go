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
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// SymbolIndex maps a normalized file path to the file's declarations in
// source order.
//
// # Thread Safety
//
// Not safe for concurrent use. One build or update call owns an index for
// its whole duration; readers that need concurrent access go through
// orchestrator.IndexHolder, which only ever swaps whole snapshots.
type SymbolIndex map[string][]*SymbolEntry

// New returns an empty index.
func New() SymbolIndex {
	return make(SymbolIndex)
}

// Clone returns a deep copy of the index.
//
// Entries and their edge slices are copied, so mutating the clone never
// affects the receiver.
func (idx SymbolIndex) Clone() SymbolIndex {
	if idx == nil {
		return nil
	}
	out := make(SymbolIndex, len(idx))
	for file, entries := range idx {
		copied := make([]*SymbolEntry, len(entries))
		for i, e := range entries {
			copied[i] = e.Clone()
		}
		out[file] = copied
	}
	return out
}

// Files returns the indexed file paths in sorted order.
func (idx SymbolIndex) Files() []string {
	files := make([]string, 0, len(idx))
	for f := range idx {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Lookup builds an identity-key map over every entry in the index.
//
// If a file somehow holds two entries with the same name, the first wins,
// matching the extractor's first-declaration rule.
func (idx SymbolIndex) Lookup() map[SymbolKey]*SymbolEntry {
	out := make(map[SymbolKey]*SymbolEntry, idx.Len())
	for _, entries := range idx {
		for _, e := range entries {
			key := e.Key()
			if _, exists := out[key]; !exists {
				out[key] = e
			}
		}
	}
	return out
}

// Get returns the entry with the given identity, or nil.
func (idx SymbolIndex) Get(key SymbolKey) *SymbolEntry {
	for _, e := range idx[key.FilePath] {
		if e.Name == key.Name {
			return e
		}
	}
	return nil
}

// Find returns every entry with the given name across all files, in
// sorted file order.
func (idx SymbolIndex) Find(name string) []*SymbolEntry {
	var out []*SymbolEntry
	for _, file := range idx.Files() {
		for _, e := range idx[file] {
			if e.Name == name {
				out = append(out, e)
			}
		}
	}
	return out
}

// Len returns the total number of entries.
func (idx SymbolIndex) Len() int {
	n := 0
	for _, entries := range idx {
		n += len(entries)
	}
	return n
}

// EdgeCount returns the total number of forward edges.
func (idx SymbolIndex) EdgeCount() int {
	n := 0
	for _, entries := range idx {
		for _, e := range entries {
			n += len(e.DependsOn)
		}
	}
	return n
}

// RemoveFile deletes the file's entries. Returns the removed entries.
func (idx SymbolIndex) RemoveFile(filePath string) []*SymbolEntry {
	removed := idx[filePath]
	delete(idx, filePath)
	return removed
}

// StripEdgesTo removes every edge that points into filePath from entries of
// other files: dependsOn edges whose target lives in filePath and dependents
// edges whose source lives in filePath.
//
// Returns the number of edges removed.
func (idx SymbolIndex) StripEdgesTo(filePath string) int {
	removed := 0
	for file, entries := range idx {
		if file == filePath {
			continue
		}
		for _, e := range entries {
			deps := e.DependsOn[:0]
			for _, d := range e.DependsOn {
				if d.TargetFilePath == filePath {
					removed++
					continue
				}
				deps = append(deps, d)
			}
			e.DependsOn = deps

			dents := e.Dependents[:0]
			for _, d := range e.Dependents {
				if d.SourceFilePath == filePath {
					removed++
					continue
				}
				dents = append(dents, d)
			}
			e.Dependents = dents
		}
	}
	return removed
}

// EnsureModuleSymbol returns the file's module symbol, appending a new one
// to the file's entries if it does not exist yet.
func (idx SymbolIndex) EnsureModuleSymbol(filePath string) (*SymbolEntry, bool) {
	for _, e := range idx[filePath] {
		if e.IsModuleSymbol() {
			return e, false
		}
	}
	m := NewModuleSymbol(filePath)
	idx[filePath] = append(idx[filePath], m)
	return m, true
}

// PruneEmptyModuleSymbols removes module symbols that carry no edges in
// either direction. Returns the number removed.
func (idx SymbolIndex) PruneEmptyModuleSymbols() int {
	pruned := 0
	for file, entries := range idx {
		kept := entries[:0]
		for _, e := range entries {
			if e.IsModuleSymbol() && len(e.DependsOn) == 0 && len(e.Dependents) == 0 {
				pruned++
				continue
			}
			kept = append(kept, e)
		}
		idx[file] = kept
	}
	return pruned
}

// Normalize drops null entries and makes every nil edge slice an empty
// slice so that the persisted JSON always carries arrays.
func (idx SymbolIndex) Normalize() {
	for file, entries := range idx {
		kept := entries[:0]
		for _, e := range entries {
			if e == nil {
				continue
			}
			if e.DependsOn == nil {
				e.DependsOn = []DependencyEdge{}
			}
			if e.Dependents == nil {
				e.Dependents = []DependentEdge{}
			}
			kept = append(kept, e)
		}
		if kept == nil {
			kept = []*SymbolEntry{}
		}
		idx[file] = kept
	}
}

// MergeDocumentation carries documentation from old entries onto fresh ones.
//
// Entries are matched by (name, kind). A fresh entry receives the old
// documentation only when the old value is not a placeholder. Returns the
// number of entries that received documentation.
func MergeDocumentation(old, fresh []*SymbolEntry) int {
	type docKey struct {
		name string
		kind SymbolKind
	}
	docs := make(map[docKey]string, len(old))
	for _, e := range old {
		if IsPlaceholderDocumentation(e.Documentation) {
			continue
		}
		k := docKey{name: e.Name, kind: e.Kind}
		if _, exists := docs[k]; !exists {
			docs[k] = e.Documentation
		}
	}

	merged := 0
	for _, e := range fresh {
		if doc, ok := docs[docKey{name: e.Name, kind: e.Kind}]; ok {
			e.Documentation = doc
			merged++
		}
	}
	return merged
}

// NormalizePath converts p to a forward-slash path relative to root.
//
// Absolute paths are made relative to root; relative paths are cleaned.
// Paths that escape root keep their leading "../" so callers can reject them.
func NormalizePath(root, p string) string {
	if filepath.IsAbs(p) && root != "" {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}
