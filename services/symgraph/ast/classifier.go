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
	sitter "github.com/smacker/go-tree-sitter"
)

// IsDeclaringOccurrence reports whether an identifier node introduces a name
// rather than using one.
//
// Description:
//
//	Only the immediate syntactic parent is inspected. The identifier is
//	declaring when it fills the name slot of a function, class, interface,
//	type alias, enum, variable, parameter, property or method declaration, a
//	type parameter, a catch or loop binding, a destructuring binding, or the
//	local binding of an import. Every other identifier is a candidate
//	reference.
//
// Inputs:
//
//	node - An identifier-like node (identifier, type_identifier,
//	       property_identifier, shorthand_property_identifier).
//
// Outputs:
//
//	bool - True for declaring occurrences.
func IsDeclaringOccurrence(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	parent := node.Parent()
	if parent == nil {
		return false
	}

	switch parent.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature",
		"function_expression", "function", "generator_function",
		"class_declaration", "abstract_class_declaration", "class",
		"interface_declaration", "type_alias_declaration", "enum_declaration",
		"method_definition", "method_signature", "abstract_method_signature",
		"public_field_definition", "property_signature", "type_parameter",
		"variable_declarator", "enum_assignment":
		return isField(parent, "name", node)

	case "field_definition":
		return isField(parent, "property", node)

	case "required_parameter", "optional_parameter":
		return isField(parent, "pattern", node)

	case "arrow_function":
		return isField(parent, "parameter", node)

	case "catch_clause":
		return isField(parent, "parameter", node)

	case "for_in_statement":
		return isField(parent, "left", node)

	case "assignment_pattern", "object_assignment_pattern":
		return isField(parent, "left", node)

	case "pair_pattern":
		return isField(parent, "value", node)

	case "formal_parameters", "array_pattern", "object_pattern", "rest_pattern":
		return true

	case "import_clause", "namespace_import":
		return true

	case "import_specifier":
		if alias := parent.ChildByFieldName("alias"); alias != nil {
			return sameNode(alias, node)
		}
		return isField(parent, "name", node)
	}
	return false
}

// IsReferenceCandidate reports whether node is an identifier-like node that
// may name a declaration: plain and type identifiers, shorthand object
// properties, and the member name in "this.member".
func IsReferenceCandidate(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "identifier", "type_identifier", "shorthand_property_identifier":
		return true
	case "property_identifier":
		return isThisMember(node)
	}
	return false
}

// isThisMember reports whether node is the property of a "this.x" expression.
func isThisMember(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil || parent.Type() != "member_expression" {
		return false
	}
	if !isField(parent, "property", node) {
		return false
	}
	object := parent.ChildByFieldName("object")
	return object != nil && object.Type() == "this"
}

// EnclosingClass returns the name of the nearest named class declaration
// around node, or "".
func EnclosingClass(node *sitter.Node, content []byte) string {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "class_declaration", "abstract_class_declaration":
			return nodeText(n.ChildByFieldName("name"), content)
		case "class":
			return ""
		}
	}
	return ""
}

// isShadowed reports whether name, used at node, is bound by a local scope
// (parameter, block-scoped variable, catch or loop binding, type parameter)
// between node and the program.
//
// Local bindings never name a tracked declaration, so shadowed uses are not
// references. Nested function and class declarations are tracked, so they
// do not shadow.
func isShadowed(node *sitter.Node, name string, content []byte) bool {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "program":
			return false

		case "function_declaration", "generator_function_declaration", "function_expression",
			"function", "generator_function", "method_definition":
			if bindsName(n.ChildByFieldName("parameters"), name, content) ||
				bindsTypeParameter(n, name, content) {
				return true
			}

		case "arrow_function":
			if p := n.ChildByFieldName("parameter"); p != nil && nodeText(p, content) == name {
				return true
			}
			if bindsName(n.ChildByFieldName("parameters"), name, content) ||
				bindsTypeParameter(n, name, content) {
				return true
			}

		case "class_declaration", "abstract_class_declaration", "interface_declaration",
			"type_alias_declaration":
			if bindsTypeParameter(n, name, content) {
				return true
			}

		case "statement_block", "switch_case", "switch_default":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if declaresVariable(n.NamedChild(i), name, content) {
					return true
				}
			}

		case "for_statement":
			if declaresVariable(n.ChildByFieldName("initializer"), name, content) {
				return true
			}

		case "for_in_statement":
			if bindsName(n.ChildByFieldName("left"), name, content) {
				return true
			}

		case "catch_clause":
			if bindsName(n.ChildByFieldName("parameter"), name, content) {
				return true
			}
		}
	}
	return false
}

// declaresVariable reports whether stmt is a variable statement binding name.
func declaresVariable(stmt *sitter.Node, name string, content []byte) bool {
	if stmt == nil {
		return false
	}
	switch stmt.Type() {
	case "lexical_declaration", "variable_declaration":
	default:
		return false
	}
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		decl := stmt.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		if bindsName(decl.ChildByFieldName("name"), name, content) {
			return true
		}
	}
	return false
}

// bindsName reports whether the binding pattern rooted at node binds name.
func bindsName(node *sitter.Node, name string, content []byte) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return nodeText(node, content) == name

	case "required_parameter", "optional_parameter":
		return bindsName(node.ChildByFieldName("pattern"), name, content)

	case "assignment_pattern", "object_assignment_pattern":
		return bindsName(node.ChildByFieldName("left"), name, content)

	case "pair_pattern":
		return bindsName(node.ChildByFieldName("value"), name, content)

	case "formal_parameters", "object_pattern", "array_pattern", "rest_pattern":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if bindsName(node.NamedChild(i), name, content) {
				return true
			}
		}
	}
	return false
}

// bindsTypeParameter reports whether decl declares a type parameter named name.
func bindsTypeParameter(decl *sitter.Node, name string, content []byte) bool {
	params := decl.ChildByFieldName("type_parameters")
	if params == nil {
		return false
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() == "type_parameter" && nodeText(p.ChildByFieldName("name"), content) == name {
			return true
		}
	}
	return false
}
