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
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies the grammar used for a file.
type Language string

const (
	// LanguageTypeScript covers .ts, .mts and .cts files.
	LanguageTypeScript Language = "typescript"

	// LanguageTSX covers .tsx files.
	LanguageTSX Language = "tsx"

	// LanguageJavaScript covers .js, .jsx, .mjs and .cjs files.
	LanguageJavaScript Language = "javascript"
)

var languageByExtension = map[string]Language{
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTSX,
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
}

// AnalyzableExtensions returns the file extensions the extractor handles.
func AnalyzableExtensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}
}

// LanguageForPath returns the grammar for filePath by extension.
func LanguageForPath(filePath string) (Language, bool) {
	lang, ok := languageByExtension[strings.ToLower(path.Ext(filePath))]
	return lang, ok
}

// IsAnalyzable reports whether filePath has an analyzable extension.
func IsAnalyzable(filePath string) bool {
	_, ok := LanguageForPath(filePath)
	return ok
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case LanguageTSX:
		return tsx.GetLanguage()
	case LanguageJavaScript:
		return javascript.GetLanguage()
	default:
		return typescript.GetLanguage()
	}
}

// parseTree parses content with the grammar for lang.
//
// A new tree-sitter parser is created per call so callers may parse from
// multiple goroutines. The caller must Close the returned tree.
func parseTree(ctx context.Context, lang Language, content []byte) (*sitter.Tree, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("parse canceled: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("%w: tree-sitter returned no tree", ErrParseFailed)
	}
	return tree, nil
}

// nodeText returns the source text spanned by node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// sameNode reports whether a and b are the same syntax node.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// isField reports whether node fills the named field of parent.
func isField(parent *sitter.Node, field string, node *sitter.Node) bool {
	return sameNode(parent.ChildByFieldName(field), node)
}

// stringLiteral returns the unquoted content of a string node.
func stringLiteral(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string_fragment" {
			return nodeText(child, content)
		}
	}
	return strings.Trim(nodeText(node, content), "\"'`")
}

// isFunctionValue reports whether node is an arrow function or function
// expression.
func isFunctionValue(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// isTopLevel reports whether a statement sits directly in the program, or
// directly in an export statement that sits in the program.
func isTopLevel(stmt *sitter.Node) bool {
	parent := stmt.Parent()
	if parent == nil {
		return false
	}
	if parent.Type() == "export_statement" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "program"
}
