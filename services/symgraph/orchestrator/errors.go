// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectTooLarge indicates the file list exceeded MaxFiles. The list
	// is truncated and the build proceeds.
	ErrProjectTooLarge = errors.New("project exceeds maximum file count")

	// ErrIncrementalUpdate indicates an incremental update failed. The
	// caller's index is returned unchanged alongside the error.
	ErrIncrementalUpdate = errors.New("incremental update failed")
)

// UpdateError describes a failed incremental update.
type UpdateError struct {
	// ChangedFile is the normalized path passed to Update.
	ChangedFile string

	// RunID identifies the update in logs and traces.
	RunID string

	// Err is the underlying failure. Panics are converted to errors.
	Err error
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s: %s (run %s): %v", ErrIncrementalUpdate, e.ChangedFile, e.RunID, e.Err)
}

// Unwrap returns both ErrIncrementalUpdate and the underlying cause.
func (e *UpdateError) Unwrap() []error {
	return []error{ErrIncrementalUpdate, e.Err}
}
