// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts declarations and reference facts from TypeScript and
// JavaScript sources using tree-sitter.
//
// The Extractor turns one file into an ordered list of index.SymbolEntry
// values. Analyze additionally produces the file's FileFacts: everything the
// resolver needs about the file (declared names, imports, exports and
// identifier use-sites) in a form that can be cached by content hash.
package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
)

const (
	// DefaultMaxFileSize is the size ceiling above which files are skipped.
	DefaultMaxFileSize = 1 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged.
	WarnFileSize = 512 * 1024
)

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxFileSize sets the size ceiling in bytes. Non-positive values are ignored.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(e *Extractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger used for skipped files and node errors.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor parses single files into declaration records.
//
// Description:
//
//	Extractor walks a tree-sitter parse tree depth-first and emits one
//	SymbolEntry per named declaration: functions, classes and their methods,
//	interfaces, type aliases, enums and top-level variables. Extraction is a
//	pure function of the file content and path; it never looks at other files.
//
// Thread Safety:
//
//	Safe for concurrent use. Each call creates its own tree-sitter parser.
type Extractor struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxFileSize returns the configured size ceiling.
func (e *Extractor) MaxFileSize() int64 {
	return e.maxFileSize
}

// Analysis is the full result of analyzing one file.
type Analysis struct {
	// Entries are the file's declarations in source order.
	Entries []*index.SymbolEntry

	// Facts are the file's resolution facts.
	Facts *FileFacts

	// NodeErrors are the declaration nodes that were skipped.
	NodeErrors []error
}

// Extract returns the declarations of one file in source order.
//
// Description:
//
//	Files with a non-analyzable extension and files larger than the size
//	ceiling yield an empty list and no error. Malformed declaration nodes
//	are logged and skipped without aborting the rest of the file.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	content - Raw UTF-8 source.
//	filePath - Normalized project-relative path, used as each entry's filePath.
//
// Outputs:
//
//	[]*index.SymbolEntry - Declarations in source order. Never nil on success.
//	error - ErrInvalidContent, ErrParseFailed or a context error.
func (e *Extractor) Extract(ctx context.Context, content []byte, filePath string) ([]*index.SymbolEntry, error) {
	a, err := e.Analyze(ctx, content, filePath)
	if err != nil {
		return nil, err
	}
	return a.Entries, nil
}

// Analyze extracts declarations and resolution facts in a single parse.
func (e *Extractor) Analyze(ctx context.Context, content []byte, filePath string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}

	ctx, span := startExtractSpan(ctx, filePath, len(content))
	defer span.End()

	empty := &Analysis{
		Entries: []*index.SymbolEntry{},
		Facts:   newFileFacts(filePath, ContentHash(content)),
	}

	lang, ok := LanguageForPath(filePath)
	if !ok {
		e.logger.Debug("skipping file",
			slog.String("file", filePath),
			slog.String("error", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path.Ext(filePath)).Error()))
		recordSkip(ctx, "unsupported")
		return empty, nil
	}

	if int64(len(content)) > e.maxFileSize {
		e.logger.Warn("skipping file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)),
			slog.String("error", fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize).Error()))
		recordSkip(ctx, "too_large")
		return empty, nil
	}
	if len(content) > WarnFileSize {
		e.logger.Warn("extracting large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if len(content) == 0 {
		return empty, nil
	}

	start := time.Now()
	tree, err := parseTree(ctx, lang, content)
	if err != nil {
		recordExtractMetrics(ctx, lang, time.Since(start), 0, 0, false)
		span.RecordError(err)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	x := &extraction{
		content:  content,
		filePath: filePath,
		seen:     make(map[string]struct{}),
		entries:  make([]*index.SymbolEntry, 0),
	}
	x.walk(root)

	for _, nerr := range x.errors {
		e.logger.Warn("skipping declaration node",
			slog.String("file", filePath),
			slog.String("error", nerr.Error()))
	}

	facts := empty.Facts
	buildFacts(facts, root, content, x.entries)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled after parse: %w", err)
	}

	recordExtractMetrics(ctx, lang, time.Since(start), len(x.entries), len(x.errors), true)
	setExtractSpanResult(span, len(x.entries), len(facts.UseSites), len(x.errors))

	return &Analysis{
		Entries:    x.entries,
		Facts:      facts,
		NodeErrors: x.errors,
	}, nil
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// extraction holds the state of one depth-first declaration walk.
type extraction struct {
	content  []byte
	filePath string
	entries  []*index.SymbolEntry
	seen     map[string]struct{}
	errors   []error
}

// walk visits node in pre-order, which is the source order of each
// declaration's first token.
func (x *extraction) walk(node *sitter.Node) {
	if err := x.visit(node); err != nil {
		x.errors = append(x.errors, err)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		x.walk(child)
	}
}

// visit emits the declaration node is, if any.
func (x *extraction) visit(node *sitter.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = x.nodeError(node, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch node.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindFunction, node)

	case "function_expression", "function", "generator_function":
		// Named "export default function f() {}" may parse as an expression.
		if !isDefaultExportValue(node) || node.ChildByFieldName("name") == nil {
			return nil
		}
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindFunction, node)

	case "class_declaration", "abstract_class_declaration":
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindClass, node)

	case "interface_declaration":
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindInterface, node)

	case "type_alias_declaration":
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindTypeAlias, node)

	case "enum_declaration":
		return x.declare(node, node.ChildByFieldName("name"), "", index.SymbolKindEnum, node)

	case "method_definition", "method_signature", "abstract_method_signature":
		className, ok := classOfMember(node, x.content)
		if !ok {
			return nil
		}
		nameNode := node.ChildByFieldName("name")
		if !isMemberName(nameNode) {
			return nil
		}
		return x.declare(node, nameNode, className+".", index.SymbolKindMethod, node)

	case "public_field_definition", "field_definition":
		className, ok := classOfMember(node, x.content)
		if !ok || !isFunctionValue(node.ChildByFieldName("value")) {
			return nil
		}
		nameNode := memberNameNode(node)
		if !isMemberName(nameNode) {
			return nil
		}
		return x.declare(node, nameNode, className+".", index.SymbolKindMethod, node)

	case "variable_declarator":
		stmt := node.Parent()
		if stmt == nil || !isTopLevel(stmt) {
			return nil
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return x.nodeError(node, "variable declarator has no name")
		}
		if nameNode.Type() != "identifier" {
			// Destructuring patterns do not name a single declaration.
			return nil
		}
		kind := index.SymbolKindVariable
		if isFunctionValue(node.ChildByFieldName("value")) {
			kind = index.SymbolKindFunction
		}
		return x.declare(node, nameNode, "", kind, stmt)
	}
	return nil
}

// declare appends an entry for nameNode unless it is excluded or a duplicate.
func (x *extraction) declare(node, nameNode *sitter.Node, prefix string, kind index.SymbolKind, span *sitter.Node) error {
	if nameNode == nil {
		return x.nodeError(node, "declaration has no name")
	}
	name := nodeText(nameNode, x.content)
	if name == "" {
		return x.nodeError(node, "declaration has an empty name")
	}
	if prefix == "" && IsAmbientName(name) {
		return nil
	}
	full := prefix + name
	if full == index.ModuleSymbolName {
		return nil
	}
	if _, dup := x.seen[full]; dup {
		return nil
	}
	x.seen[full] = struct{}{}

	start := nameNode.StartPoint()
	x.entries = append(x.entries, index.NewSymbolEntry(
		full,
		kind,
		x.filePath,
		index.Location{Line: int(start.Row) + 1, Character: int(start.Column)},
		nodeText(span, x.content),
	))
	return nil
}

func (x *extraction) nodeError(node *sitter.Node, msg string) error {
	start := node.StartPoint()
	return &NodeError{
		FilePath: x.filePath,
		Line:     int(start.Row) + 1,
		Column:   int(start.Column),
		NodeType: node.Type(),
		Message:  msg,
	}
}

// classOfMember returns the name of the class whose body directly contains
// member. Members of anonymous classes and object literals return false.
func classOfMember(member *sitter.Node, content []byte) (string, bool) {
	body := member.Parent()
	if body == nil || body.Type() != "class_body" {
		return "", false
	}
	class := body.Parent()
	if class == nil {
		return "", false
	}
	switch class.Type() {
	case "class_declaration", "abstract_class_declaration":
	default:
		return "", false
	}
	name := nodeText(class.ChildByFieldName("name"), content)
	return name, name != ""
}

// isDefaultExportValue reports whether node is the value of an
// "export default" statement.
func isDefaultExportValue(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Type() == "export_statement" && isField(parent, "value", node)
}

// memberNameNode returns the name slot of a class field, which the
// JavaScript grammar calls "property".
func memberNameNode(field *sitter.Node) *sitter.Node {
	if n := field.ChildByFieldName("name"); n != nil {
		return n
	}
	return field.ChildByFieldName("property")
}

// isMemberName reports whether n is a plain (non-computed) member name.
func isMemberName(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "property_identifier", "private_property_identifier", "identifier":
		return true
	}
	return false
}
