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
	"errors"
	"fmt"
)

var (
	// ErrReferenceResolution indicates a single use-site could not be
	// resolved. The edge is skipped.
	ErrReferenceResolution = errors.New("reference resolution failed")

	// ErrFileResolution indicates a whole file could not be processed during
	// dependency resolution. The file is skipped.
	ErrFileResolution = errors.New("file resolution failed")
)

// FileError records a file skipped during dependency resolution.
type FileError struct {
	FilePath string
	Err      error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFileResolution, e.FilePath, e.Err)
}

// Unwrap returns both ErrFileResolution and the underlying cause.
func (e *FileError) Unwrap() []error {
	return []error{ErrFileResolution, e.Err}
}
