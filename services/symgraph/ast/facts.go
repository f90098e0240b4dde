// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

// Imported names with special meaning in ImportBinding.Imported.
const (
	// ImportDefault binds the module's default export.
	ImportDefault = "default"

	// ImportNamespace binds the whole module. Namespace bindings are never
	// resolved to individual declarations.
	ImportNamespace = "*"
)

// ImportBinding maps a local name to a name exported by another module.
type ImportBinding struct {
	// Local is the name bound in the importing file. For re-exports it is
	// the name the file exports; "*" for "export * from".
	Local string `json:"local"`

	// Imported is the name in the source module, ImportDefault or ImportNamespace.
	Imported string `json:"imported"`

	// Source is the module specifier as written.
	Source string `json:"source"`
}

// UseKind distinguishes how a use-site is resolved.
type UseKind int

const (
	// UsePlain is a bare identifier resolved through lexical and module scope.
	UsePlain UseKind = iota

	// UseThisMember is "this.name" inside a class, resolved to Class.name.
	UseThisMember

	// UseImportName is the exported name in "import {name as x}" or
	// "export {name} from", resolved inside Source.
	UseImportName
)

// UseSite is one candidate reference, recorded independently of any
// project-wide context so it can be cached with the file.
type UseSite struct {
	Name   string  `json:"name"`
	Kind   UseKind `json:"kind"`
	Line   int     `json:"line"`
	Column int     `json:"column"`

	// Containers are the enclosing declaration names, outermost first.
	Containers []string `json:"containers,omitempty"`

	// Class is the nearest enclosing class, used by UseThisMember.
	Class string `json:"class,omitempty"`

	// Source is the module specifier for UseImportName.
	Source string `json:"source,omitempty"`
}

// FileFacts is everything resolution needs to know about one file.
//
// Facts depend only on the file content, so they are cached by Hash and
// reused until the file changes.
type FileFacts struct {
	FilePath string `json:"filePath"`
	Hash     string `json:"hash"`

	// Declared lists every extracted declaration name, including "Class.method".
	Declared []string `json:"declared"`

	// TopLevel lists declarations made directly at program scope.
	TopLevel []string `json:"topLevel"`

	// IsModule is true for ES modules and CommonJS files. Top-level names
	// of non-module (script) files are global.
	IsModule bool `json:"isModule"`

	Imports   []ImportBinding `json:"imports,omitempty"`
	ReExports []ImportBinding `json:"reExports,omitempty"`

	// DefaultExport is the local name exported as default, if it is a name.
	DefaultExport string `json:"defaultExport,omitempty"`

	UseSites []UseSite `json:"useSites,omitempty"`
}

func newFileFacts(filePath, hash string) *FileFacts {
	return &FileFacts{
		FilePath: filePath,
		Hash:     hash,
		Declared: []string{},
		TopLevel: []string{},
	}
}

// buildFacts fills facts from a parsed tree and its extracted entries.
func buildFacts(facts *FileFacts, root *sitter.Node, content []byte, entries []*index.SymbolEntry) {
	for _, e := range entries {
		facts.Declared = append(facts.Declared, e.Name)
	}

	b := &factsBuilder{facts: facts, content: content}
	b.scanProgram(root)
	b.walk(root, nil, "")
}

type factsBuilder struct {
	facts   *FileFacts
	content []byte
}

// scanProgram collects top-level names, imports and exports.
func (b *factsBuilder) scanProgram(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "import_statement":
			b.facts.IsModule = true
			b.scanImport(stmt)
		case "export_statement":
			b.facts.IsModule = true
			b.scanExport(stmt)
		case "lexical_declaration", "variable_declaration":
			b.scanRequire(stmt)
			b.addTopLevel(stmt)
		case "expression_statement":
			b.scanCommonJSExport(stmt)
		default:
			b.addTopLevel(stmt)
		}
	}
}

func (b *factsBuilder) addTopLevel(decl *sitter.Node) {
	if decl == nil {
		return
	}
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "interface_declaration",
		"type_alias_declaration", "enum_declaration":
		if name := nodeText(decl.ChildByFieldName("name"), b.content); name != "" && !IsAmbientName(name) {
			b.facts.TopLevel = append(b.facts.TopLevel, name)
		}
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			n := d.ChildByFieldName("name")
			if n != nil && n.Type() == "identifier" && !IsAmbientName(nodeText(n, b.content)) {
				b.facts.TopLevel = append(b.facts.TopLevel, nodeText(n, b.content))
			}
		}
	}
}

func (b *factsBuilder) scanImport(stmt *sitter.Node) {
	source := stringLiteral(stmt.ChildByFieldName("source"), b.content)
	if source == "" {
		return
	}
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			part := clause.NamedChild(j)
			switch part.Type() {
			case "identifier":
				b.addImport(nodeText(part, b.content), ImportDefault, source)
			case "namespace_import":
				for k := 0; k < int(part.NamedChildCount()); k++ {
					if id := part.NamedChild(k); id.Type() == "identifier" {
						b.addImport(nodeText(id, b.content), ImportNamespace, source)
					}
				}
			case "named_imports":
				for k := 0; k < int(part.NamedChildCount()); k++ {
					spec := part.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name := nodeText(spec.ChildByFieldName("name"), b.content)
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = nodeText(alias, b.content)
					}
					b.addImport(local, name, source)
				}
			}
		}
	}
}

func (b *factsBuilder) addImport(local, imported, source string) {
	if local == "" || imported == "" {
		return
	}
	b.facts.Imports = append(b.facts.Imports, ImportBinding{Local: local, Imported: imported, Source: source})
}

func (b *factsBuilder) scanExport(stmt *sitter.Node) {
	source := stringLiteral(stmt.ChildByFieldName("source"), b.content)
	isDefault := hasToken(stmt, "default")

	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		b.addTopLevel(decl)
		if isDefault {
			b.facts.DefaultExport = nodeText(decl.ChildByFieldName("name"), b.content)
		}
		return
	}
	if value := stmt.ChildByFieldName("value"); value != nil && isDefault {
		switch value.Type() {
		case "identifier":
			b.facts.DefaultExport = nodeText(value, b.content)
		case "function_declaration", "class_declaration", "function_expression", "class":
			b.facts.DefaultExport = nodeText(value.ChildByFieldName("name"), b.content)
		}
		return
	}

	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		switch child.Type() {
		case "export_clause":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := nodeText(spec.ChildByFieldName("name"), b.content)
				exported := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exported = nodeText(alias, b.content)
				}
				if source != "" {
					b.facts.ReExports = append(b.facts.ReExports, ImportBinding{Local: exported, Imported: name, Source: source})
				} else if exported == ImportDefault {
					b.facts.DefaultExport = name
				}
			}
		case "namespace_export":
			// "export * as ns from" binds a namespace; not resolved.
			return
		}
	}
	if source != "" && hasToken(stmt, "*") && !hasNamedChild(stmt, "export_clause") {
		b.facts.ReExports = append(b.facts.ReExports, ImportBinding{Local: ImportNamespace, Imported: ImportNamespace, Source: source})
	}
}

// scanRequire records CommonJS bindings of the forms
// "const x = require('m')" and "const {a, b: c} = require('m')".
func (b *factsBuilder) scanRequire(stmt *sitter.Node) {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		decl := stmt.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		source, ok := requireSource(decl.ChildByFieldName("value"), b.content)
		if !ok {
			continue
		}
		b.facts.IsModule = true

		name := decl.ChildByFieldName("name")
		if name == nil {
			continue
		}
		switch name.Type() {
		case "identifier":
			b.addImport(nodeText(name, b.content), ImportDefault, source)
		case "object_pattern":
			for j := 0; j < int(name.NamedChildCount()); j++ {
				p := name.NamedChild(j)
				switch p.Type() {
				case "shorthand_property_identifier_pattern":
					n := nodeText(p, b.content)
					b.addImport(n, n, source)
				case "pair_pattern":
					key := nodeText(p.ChildByFieldName("key"), b.content)
					if v := p.ChildByFieldName("value"); v != nil && v.Type() == "identifier" {
						b.addImport(nodeText(v, b.content), key, source)
					}
				}
			}
		}
	}
}

// scanCommonJSExport detects "module.exports = x" and "exports.y = ...".
func (b *factsBuilder) scanCommonJSExport(stmt *sitter.Node) {
	if stmt.NamedChildCount() == 0 {
		return
	}
	assign := stmt.NamedChild(0)
	if assign.Type() != "assignment_expression" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "member_expression" {
		return
	}
	target := nodeText(left, b.content)
	switch {
	case target == "module.exports":
		b.facts.IsModule = true
		if right := assign.ChildByFieldName("right"); right != nil && right.Type() == "identifier" {
			b.facts.DefaultExport = nodeText(right, b.content)
		}
	case strings.HasPrefix(target, "module.exports.") || strings.HasPrefix(target, "exports."):
		b.facts.IsModule = true
	}
}

// walk records use-sites, tracking the enclosing declaration chain.
// containers is never appended in place: every push copies, so the slice
// each use-site keeps stays fixed.
func (b *factsBuilder) walk(node *sitter.Node, containers []string, class string) {
	if name, ok := containerName(node, b.content); ok {
		next := make([]string, len(containers), len(containers)+1)
		copy(next, containers)
		containers = append(next, name)
	}
	switch node.Type() {
	case "class_declaration", "abstract_class_declaration":
		class = nodeText(node.ChildByFieldName("name"), b.content)
	case "class":
		class = ""
	}

	if IsReferenceCandidate(node) && !IsDeclaringOccurrence(node) {
		if us, ok := LocateUseSite(node, b.content, containers, class); ok {
			b.facts.UseSites = append(b.facts.UseSites, us)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		b.walk(child, containers, class)
	}
}

// containerName returns the declaration name pushed when entering node.
func containerName(node *sitter.Node, content []byte) (string, bool) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "interface_declaration",
		"type_alias_declaration", "enum_declaration":
		name := nodeText(node.ChildByFieldName("name"), content)
		return name, name != ""

	case "method_definition", "method_signature", "abstract_method_signature":
		className, ok := classOfMember(node, content)
		if !ok || !isMemberName(node.ChildByFieldName("name")) {
			return "", false
		}
		return className + "." + nodeText(node.ChildByFieldName("name"), content), true

	case "public_field_definition", "field_definition":
		className, ok := classOfMember(node, content)
		nameNode := memberNameNode(node)
		if !ok || !isMemberName(nameNode) || !isFunctionValue(node.ChildByFieldName("value")) {
			return "", false
		}
		return className + "." + nodeText(nameNode, content), true

	case "function_expression", "function", "generator_function":
		if !isDefaultExportValue(node) {
			return "", false
		}
		name := nodeText(node.ChildByFieldName("name"), content)
		return name, name != ""

	case "variable_declarator":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" || !isFunctionValue(node.ChildByFieldName("value")) {
			return "", false
		}
		if stmt := node.Parent(); stmt == nil || !isTopLevel(stmt) {
			return "", false
		}
		return nodeText(nameNode, content), true
	}
	return "", false
}

// LocateUseSite builds the use-site for a non-declaring identifier.
//
// Description:
//
//	Returns false for ambient names and for identifiers bound by a local
//	scope, since neither can name a tracked declaration. The result does
//	not depend on any other file.
//
// Inputs:
//
//	node - A reference candidate (see IsReferenceCandidate).
//	content - The file source.
//	containers - Enclosing declaration names, outermost first.
//	class - Nearest enclosing class name, or "".
//
// Outputs:
//
//	UseSite - The use-site.
//	bool - False if node cannot name a tracked declaration.
func LocateUseSite(node *sitter.Node, content []byte, containers []string, class string) (UseSite, bool) {
	name := nodeText(node, content)
	if name == "" || IsAmbientName(name) {
		return UseSite{}, false
	}

	start := node.StartPoint()
	us := UseSite{
		Name:       name,
		Kind:       UsePlain,
		Line:       int(start.Row) + 1,
		Column:     int(start.Column),
		Containers: containers,
		Class:      class,
	}

	parent := node.Parent()
	switch {
	case node.Type() == "property_identifier":
		if class == "" {
			return UseSite{}, false
		}
		us.Kind = UseThisMember
		return us, true

	case parent != nil && parent.Type() == "import_specifier":
		us.Kind = UseImportName
		us.Source = moduleSourceOf(parent, content)
		return us, us.Source != ""

	case parent != nil && parent.Type() == "export_specifier" && isField(parent, "name", node):
		if source := moduleSourceOf(parent, content); source != "" {
			us.Kind = UseImportName
			us.Source = source
			return us, true
		}
		if isShadowed(node, name, content) {
			return UseSite{}, false
		}
		return us, true
	}

	if isShadowed(node, name, content) {
		return UseSite{}, false
	}
	return us, true
}

// moduleSourceOf returns the module specifier of the import or export
// statement enclosing node.
func moduleSourceOf(node *sitter.Node, content []byte) string {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "import_statement", "export_statement":
			return stringLiteral(n.ChildByFieldName("source"), content)
		case "program":
			return ""
		}
	}
	return ""
}

// requireSource returns the specifier of a "require('m')" call.
func requireSource(call *sitter.Node, content []byte) (string, bool) {
	if call == nil || call.Type() != "call_expression" {
		return "", false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || nodeText(fn, content) != "require" {
		return "", false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	source := stringLiteral(arg, content)
	return source, source != ""
}

// hasToken reports whether node has a direct anonymous child of type tok.
func hasToken(node *sitter.Node, tok string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(i); c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func hasNamedChild(node *sitter.Node, typ string) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if node.NamedChild(i).Type() == typ {
			return true
		}
	}
	return false
}
