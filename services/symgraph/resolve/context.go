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
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/ast"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// maxReExportDepth bounds how many re-export hops are followed.
const maxReExportDepth = 8

// moduleExtensions are tried, in order, when a relative specifier has no
// matching file as written.
var moduleExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts"}

// esmSourceExtensions maps compiled ESM specifiers to their TypeScript sources.
var esmSourceExtensions = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

// vendoredDirs are path segments marking code the project does not own.
var vendoredDirs = map[string]bool{
	"node_modules":     true,
	"vendor":           true,
	"bower_components": true,
	"jspm_packages":    true,
}

// Context is the project-wide semantic resolution capability.
//
// Description:
//
//	A Context is built once per whole-project pass from the FileFacts of
//	every analyzable file, so declarations anywhere in the project are
//	visible before any reference is resolved. It is immutable after
//	construction.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Context struct {
	facts         map[string]*ast.FileFacts
	declared      map[string]map[string]struct{}
	scriptGlobals map[string]string
	fingerprint   string
}

// NewContext builds a Context over the given facts.
func NewContext(facts []*ast.FileFacts) *Context {
	c := &Context{
		facts:         make(map[string]*ast.FileFacts, len(facts)),
		declared:      make(map[string]map[string]struct{}, len(facts)),
		scriptGlobals: make(map[string]string),
	}
	for _, f := range facts {
		if f == nil {
			continue
		}
		c.facts[f.FilePath] = f
		names := make(map[string]struct{}, len(f.Declared))
		for _, n := range f.Declared {
			names[n] = struct{}{}
		}
		c.declared[f.FilePath] = names
	}

	files := c.Files()
	for _, p := range files {
		f := c.facts[p]
		if f.IsModule || IsExternalPath(p) {
			continue
		}
		for _, name := range f.TopLevel {
			if _, taken := c.scriptGlobals[name]; !taken {
				c.scriptGlobals[name] = p
			}
		}
	}
	c.fingerprint = Fingerprint(facts)
	return c
}

// Fingerprint identifies a set of files by path and content hash.
func Fingerprint(facts []*ast.FileFacts) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		if f != nil {
			lines = append(lines, f.FilePath+":"+f.Hash)
		}
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the fingerprint of the file set the Context was built from.
func (c *Context) Fingerprint() string {
	return c.fingerprint
}

// Files returns the files known to the Context, sorted.
func (c *Context) Files() []string {
	files := make([]string, 0, len(c.facts))
	for p := range c.facts {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

// Facts returns the facts for filePath.
func (c *Context) Facts(filePath string) (*ast.FileFacts, bool) {
	f, ok := c.facts[filePath]
	return f, ok
}

// ResolveReference returns the declaration a use-site names.
//
// Description:
//
//	Ambient names resolve to nothing. Otherwise the name is looked up in
//	order: this.member as Class.member, the declaring file itself, the
//	file's import bindings (following re-exports), then top-level names of
//	script files. Targets outside the project or in vendored directories
//	resolve to nothing.
//
// Inputs:
//
//	filePath - Normalized path of the file containing the use-site.
//	us - The use-site.
//
// Outputs:
//
//	index.SymbolKey - The declaration's file and name.
//	bool - False if the use-site names no owned declaration.
func (c *Context) ResolveReference(filePath string, us ast.UseSite) (index.SymbolKey, bool) {
	if us.Name == "" || ast.IsAmbientName(us.Name) {
		return index.SymbolKey{}, false
	}
	f, ok := c.facts[filePath]
	if !ok {
		return index.SymbolKey{}, false
	}

	var key index.SymbolKey
	switch us.Kind {
	case ast.UseThisMember:
		if us.Class == "" {
			return index.SymbolKey{}, false
		}
		key, ok = c.declaredIn(filePath, us.Class+"."+us.Name)

	case ast.UseImportName:
		target, found := c.resolveModule(filePath, us.Source)
		if !found {
			return index.SymbolKey{}, false
		}
		key, ok = c.resolveExport(target, us.Name, 0, map[string]bool{})

	default:
		key, ok = c.declaredIn(filePath, us.Name)
		if !ok {
			if b, found := importFor(f, us.Name); found {
				key, ok = c.resolveImport(filePath, b, 0, map[string]bool{})
			} else {
				key, ok = c.scriptGlobal(us.Name)
			}
		}
	}

	if !ok || IsExternalPath(key.FilePath) {
		return index.SymbolKey{}, false
	}
	return key, true
}

// ResolveNode resolves an identifier node in filePath.
//
// Declaring occurrences and shadowed names resolve to nothing.
func (c *Context) ResolveNode(filePath string, node *sitter.Node, content []byte) (index.SymbolKey, bool) {
	if node == nil || !ast.IsReferenceCandidate(node) || ast.IsDeclaringOccurrence(node) {
		return index.SymbolKey{}, false
	}
	us, ok := ast.LocateUseSite(node, content, nil, ast.EnclosingClass(node, content))
	if !ok {
		return index.SymbolKey{}, false
	}
	return c.ResolveReference(filePath, us)
}

func (c *Context) declaredIn(filePath, name string) (index.SymbolKey, bool) {
	if _, ok := c.declared[filePath][name]; ok {
		return index.SymbolKey{FilePath: filePath, Name: name}, true
	}
	return index.SymbolKey{}, false
}

func (c *Context) scriptGlobal(name string) (index.SymbolKey, bool) {
	if p, ok := c.scriptGlobals[name]; ok {
		return index.SymbolKey{FilePath: p, Name: name}, true
	}
	return index.SymbolKey{}, false
}

// resolveImport follows an import binding of fromFile to its declaration.
func (c *Context) resolveImport(fromFile string, b ast.ImportBinding, depth int, visited map[string]bool) (index.SymbolKey, bool) {
	if b.Imported == ast.ImportNamespace {
		return index.SymbolKey{}, false
	}
	target, ok := c.resolveModule(fromFile, b.Source)
	if !ok {
		return index.SymbolKey{}, false
	}
	return c.resolveExport(target, b.Imported, depth+1, visited)
}

// resolveExport finds the declaration file exports as name.
func (c *Context) resolveExport(file, name string, depth int, visited map[string]bool) (index.SymbolKey, bool) {
	if depth > maxReExportDepth {
		return index.SymbolKey{}, false
	}
	visitKey := file + "\x00" + name
	if visited[visitKey] {
		return index.SymbolKey{}, false
	}
	visited[visitKey] = true

	f, ok := c.facts[file]
	if !ok {
		return index.SymbolKey{}, false
	}

	local := name
	if name == ast.ImportDefault {
		local = f.DefaultExport
	}

	if local != "" {
		if key, ok := c.declaredIn(file, local); ok {
			return key, true
		}
		if b, ok := importFor(f, local); ok {
			return c.resolveImport(file, b, depth, visited)
		}
	}

	// "export { default } from" and "export { x as default } from".
	for _, re := range f.ReExports {
		if re.Local != name || re.Imported == ast.ImportNamespace {
			continue
		}
		if key, ok := c.resolveImport(file, re, depth, visited); ok {
			return key, true
		}
	}
	// Star re-exports never carry the default export.
	if name == ast.ImportDefault {
		return index.SymbolKey{}, false
	}
	for _, re := range f.ReExports {
		if re.Local != ast.ImportNamespace {
			continue
		}
		target, ok := c.resolveModule(file, re.Source)
		if !ok {
			continue
		}
		if key, ok := c.resolveExport(target, name, depth+1, visited); ok {
			return key, true
		}
	}
	return index.SymbolKey{}, false
}

// resolveModule maps a relative module specifier to a known file.
//
// Bare specifiers name packages and never resolve.
func (c *Context) resolveModule(fromFile, specifier string) (string, bool) {
	if !isRelativeSpecifier(specifier) {
		return "", false
	}
	base := path.Join(path.Dir(fromFile), specifier)
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", false
	}

	for _, candidate := range moduleCandidates(base) {
		if _, ok := c.facts[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

func moduleCandidates(base string) []string {
	candidates := []string{base}
	if ext := path.Ext(base); ext != "" {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range esmSourceExtensions[ext] {
			candidates = append(candidates, stem+alt)
		}
	}
	for _, ext := range moduleExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range moduleExtensions {
		candidates = append(candidates, base+"/index"+ext)
	}
	return candidates
}

func isRelativeSpecifier(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

func importFor(f *ast.FileFacts, local string) (ast.ImportBinding, bool) {
	for _, b := range f.Imports {
		if b.Local == local {
			return b, true
		}
	}
	return ast.ImportBinding{}, false
}

// IsExternalPath reports whether a normalized path lies outside the
// project's own source tree: above the root, absolute, or inside a
// vendored dependency directory.
func IsExternalPath(p string) bool {
	if p == "" || p == ".." || strings.HasPrefix(p, "../") || path.IsAbs(p) {
		return true
	}
	for _, seg := range strings.Split(p, "/") {
		if vendoredDirs[seg] {
			return true
		}
	}
	return false
}
