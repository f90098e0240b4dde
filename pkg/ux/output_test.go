// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Title("bar")
	p.Line(2, "src/b.ts:1:16")
	p.Muted(4, "none")
	p.Success("indexed")

	assert.Equal(t, "bar\n  src/b.ts:1:16\n    none\n✓ indexed\n", buf.String())
}

func TestPrinter_Icon(t *testing.T) {
	p := newPrinter(&bytes.Buffer{}, false)
	assert.Equal(t, "✗", p.Icon(IconError))
	assert.Equal(t, "→", p.Icon(IconArrow))
}

func TestIsTerminal_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
