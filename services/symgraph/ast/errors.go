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
	"errors"
	"fmt"
)

// Sentinel errors for extraction operations.
var (
	// ErrFileTooLarge indicates the source exceeds the configured size ceiling.
	// Extraction logs it and returns an empty result rather than failing.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrParseFailed indicates tree-sitter could not produce a tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrNodeParse indicates a malformed or unexpected declaration subtree.
	// The node is skipped and traversal continues.
	ErrNodeParse = errors.New("node parse error")

	// ErrUnsupportedLanguage indicates the file extension is not analyzable.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// NodeError describes a declaration node that could not be extracted.
type NodeError struct {
	// FilePath is the file containing the node.
	FilePath string

	// Line is the 1-indexed line of the node.
	Line int

	// Column is the 0-indexed column of the node.
	Column int

	// NodeType is the tree-sitter node type.
	NodeType string

	// Message describes what went wrong.
	Message string
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.FilePath, e.Line, e.Column, e.NodeType, e.Message)
}

// Unwrap returns ErrNodeParse so callers can use errors.Is.
func (e *NodeError) Unwrap() error {
	return ErrNodeParse
}
