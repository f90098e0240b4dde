// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index defines the persisted symbol dependency graph.
//
// A SymbolIndex maps normalized project-relative file paths to the ordered
// declarations found in each file. Every declaration carries forward
// (dependsOn) and reverse (dependents) edges that are attached by the
// resolver after extraction.
//
// The JSON field names of SymbolEntry, DependencyEdge and DependentEdge are a
// compatibility surface: other tools read the persisted index directly.
package index

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SymbolKind represents the type of a declaration.
type SymbolKind int

const (
	// SymbolKindOther is the fallback kind, also used for module symbols.
	SymbolKindOther SymbolKind = iota

	// SymbolKindFunction is a named function or an arrow/function expression
	// bound to an identifier.
	SymbolKindFunction

	// SymbolKindClass is a class declaration.
	SymbolKindClass

	// SymbolKindInterface is an interface declaration.
	SymbolKindInterface

	// SymbolKindTypeAlias is a type alias declaration.
	SymbolKindTypeAlias

	// SymbolKindVariable is a top-level const/let/var binding.
	SymbolKindVariable

	// SymbolKindMethod is a class member, named "Class.member".
	SymbolKindMethod

	// SymbolKindEnum is an enum declaration.
	SymbolKindEnum
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindOther:     "other",
	SymbolKindFunction:  "function",
	SymbolKindClass:     "class",
	SymbolKindInterface: "interface",
	SymbolKindTypeAlias: "type-alias",
	SymbolKindVariable:  "variable",
	SymbolKindMethod:    "method",
	SymbolKindEnum:      "enum",
}

// String returns the string representation of the SymbolKind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "other"
}

// MarshalJSON encodes the kind as its string name.
func (k SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name.
//
// Unknown names decode to SymbolKindOther so that indexes written by newer
// tools still load.
func (k *SymbolKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("symbol kind must be a string: %w", err)
	}
	*k = ParseSymbolKind(s)
	return nil
}

// ParseSymbolKind converts a string to a SymbolKind.
func ParseSymbolKind(s string) SymbolKind {
	for kind, name := range symbolKindNames {
		if name == s {
			return kind
		}
	}
	return SymbolKindOther
}

// ModuleSymbolName is the reserved name of the synthetic per-file entry that
// anchors references made outside any named container.
const ModuleSymbolName = "__module__"

// Location is the position of a declaration's name token.
type Location struct {
	// Line is 1-indexed.
	Line int `json:"line"`

	// Character is the 0-indexed column of the name token.
	Character int `json:"character"`
}

// DependencyEdge is a forward edge: the owning entry uses the target.
type DependencyEdge struct {
	TargetName     string `json:"targetName"`
	TargetFilePath string `json:"targetFilePath"`
	Line           int    `json:"line"`
}

// Key returns the identity of the edge's target.
func (e DependencyEdge) Key() SymbolKey {
	return SymbolKey{FilePath: e.TargetFilePath, Name: e.TargetName}
}

// DependentEdge is a reverse edge: the source uses the owning entry.
//
// ContextSnippet holds a few lines of source around the use-site so that a
// reader reviewing callers does not need to open the file.
type DependentEdge struct {
	SourceName     string `json:"sourceName"`
	SourceFilePath string `json:"sourceFilePath"`
	Line           int    `json:"line"`
	ContextSnippet string `json:"contextSnippet"`
}

// Key returns the identity of the edge's source.
func (e DependentEdge) Key() SymbolKey {
	return SymbolKey{FilePath: e.SourceFilePath, Name: e.SourceName}
}

// SymbolEntry is one declaration in the index.
type SymbolEntry struct {
	Name          string           `json:"name"`
	Kind          SymbolKind       `json:"kind"`
	FilePath      string           `json:"filePath"`
	Location      Location         `json:"location"`
	Documentation string           `json:"documentation"`
	Snippet       string           `json:"snippet"`
	DependsOn     []DependencyEdge `json:"dependsOn"`
	Dependents    []DependentEdge  `json:"dependents"`
}

// NewSymbolEntry creates an entry with empty, non-nil edge sets.
func NewSymbolEntry(name string, kind SymbolKind, filePath string, loc Location, snippet string) *SymbolEntry {
	return &SymbolEntry{
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Location:   loc,
		Snippet:    snippet,
		DependsOn:  []DependencyEdge{},
		Dependents: []DependentEdge{},
	}
}

// NewModuleSymbol creates the synthetic module entry for a file.
func NewModuleSymbol(filePath string) *SymbolEntry {
	return NewSymbolEntry(ModuleSymbolName, SymbolKindOther, filePath, Location{Line: 1}, "")
}

// Key returns the identity key of the entry.
func (e *SymbolEntry) Key() SymbolKey {
	return SymbolKey{FilePath: e.FilePath, Name: e.Name}
}

// IsModuleSymbol reports whether the entry is the synthetic module symbol.
func (e *SymbolEntry) IsModuleSymbol() bool {
	return e.Name == ModuleSymbolName
}

// AddDependency appends edge unless an edge with the same target identity
// already exists. Returns true if the edge was appended.
func (e *SymbolEntry) AddDependency(edge DependencyEdge) bool {
	key := edge.Key()
	for _, existing := range e.DependsOn {
		if existing.Key() == key {
			return false
		}
	}
	e.DependsOn = append(e.DependsOn, edge)
	return true
}

// AddDependent appends edge unless an edge with the same source identity
// already exists. Returns true if the edge was appended.
func (e *SymbolEntry) AddDependent(edge DependentEdge) bool {
	key := edge.Key()
	for _, existing := range e.Dependents {
		if existing.Key() == key {
			return false
		}
	}
	e.Dependents = append(e.Dependents, edge)
	return true
}

// Clone returns a deep copy of the entry.
func (e *SymbolEntry) Clone() *SymbolEntry {
	c := *e
	c.DependsOn = make([]DependencyEdge, len(e.DependsOn))
	copy(c.DependsOn, e.DependsOn)
	c.Dependents = make([]DependentEdge, len(e.Dependents))
	copy(c.Dependents, e.Dependents)
	return &c
}

// SymbolKey is the identity of a declaration: its owning file and its name.
type SymbolKey struct {
	FilePath string
	Name     string
}

// String returns "filePath:name" for logs.
func (k SymbolKey) String() string {
	return k.FilePath + ":" + k.Name
}

// IsPlaceholderDocumentation reports whether doc means "not yet written".
func IsPlaceholderDocumentation(doc string) bool {
	return strings.TrimSpace(doc) == ""
}
