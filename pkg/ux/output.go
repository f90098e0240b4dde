// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-readable CLI output.
//
// Styling is applied only when the destination is a terminal and NO_COLOR
// is unset, so piped output stays plain.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Printer writes styled lines to one destination.
type Printer struct {
	w     io.Writer
	color bool

	title   lipgloss.Style
	subtle  lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter returns a Printer for w, enabling color when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return newPrinter(w, isTerminal(w))
}

func newPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		color:   color,
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		subtle:  r.NewStyle().Foreground(ColorTealPrimary),
		muted:   r.NewStyle().Foreground(ColorSlate),
		bold:    r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(ColorTealBright),
		warning: r.NewStyle().Foreground(ColorWarning),
		failure: r.NewStyle().Foreground(ColorError),
	}
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Icon renders i with its status color.
func (p *Printer) Icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.render(p.success, string(i))
	case IconWarning:
		return p.render(p.warning, string(i))
	case IconError:
		return p.render(p.failure, string(i))
	default:
		return p.render(p.muted, string(i))
	}
}

// Title prints a heading line.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(p.title, text))
}

// Subtitle prints a secondary heading, indented by indent spaces.
func (p *Printer) Subtitle(indent int, text string) {
	fmt.Fprintf(p.w, "%*s%s\n", indent, "", p.render(p.subtle, text))
}

// Line prints text indented by indent spaces.
func (p *Printer) Line(indent int, text string) {
	fmt.Fprintf(p.w, "%*s%s\n", indent, "", text)
}

// Muted prints de-emphasized text indented by indent spaces.
func (p *Printer) Muted(indent int, text string) {
	fmt.Fprintf(p.w, "%*s%s\n", indent, "", p.render(p.muted, text))
}

// Bold returns text in bold.
func (p *Printer) Bold(text string) string {
	return p.render(p.bold, text)
}

// Dim returns text de-emphasized.
func (p *Printer) Dim(text string) string {
	return p.render(p.muted, text)
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.Icon(IconSuccess), text)
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}
