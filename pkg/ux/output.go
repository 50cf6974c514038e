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
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles groups the lipgloss styles a Printer uses.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}

// DefaultStyles returns the teal palette styles.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
		Label:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
		Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
		Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
		Error:     lipgloss.NewStyle().Foreground(ColorError),
		Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Icon provides status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// =============================================================================
// Printer
// =============================================================================

// Printer writes human-oriented CLI output. Styling is applied only when
// the destination is a terminal; otherwise text is written plain so that
// piped output stays clean.
type Printer struct {
	w      io.Writer
	styled bool
	styles Styles
}

// NewPrinter creates a Printer for w. Styling is enabled when w is an
// *os.File attached to a terminal and NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w) && os.Getenv("NO_COLOR") == "", styles: DefaultStyles()}
}

// NewPlainPrinter creates a Printer that never styles.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: DefaultStyles()}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Styled reports whether output is styled.
func (p *Printer) Styled() bool { return p.styled }

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.render(p.styles.Success, string(i))
	case IconWarning:
		return p.render(p.styles.Warning, string(i))
	case IconError:
		return p.render(p.styles.Error, string(i))
	case IconPending:
		return p.render(p.styles.Muted, string(i))
	default:
		return string(i)
	}
}

// Title prints a heading.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(p.styles.Title, text))
}

// Success prints a line with a check mark.
func (p *Printer) Success(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess), text)
}

// Warning prints a line with a warning sign.
func (p *Printer) Warning(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), p.render(p.styles.Warning, text))
}

// Error prints a line with a cross.
func (p *Printer) Error(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), p.render(p.styles.Error, text))
}

// Info prints a bulleted line.
func (p *Printer) Info(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconBullet), text)
}

// Muted prints de-emphasised text.
func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.w, p.render(p.styles.Muted, text))
}

// Line prints text unchanged.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.w, text)
}

// KeyValue prints an aligned "key: value" line.
func (p *Printer) KeyValue(key string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.render(p.styles.Label, fmt.Sprintf("%-14s", key+":")), value)
}

// Counts prints a map of counts sorted by key.
func (p *Printer) Counts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	p.Line(p.render(p.styles.Label, title))
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.w, "    %-20s %d\n", k, counts[k])
	}
}

// Box prints content inside a bordered box with a title.
func (p *Printer) Box(title, content string) {
	if !p.styled {
		fmt.Fprintf(p.w, "%s\n%s\n%s\n", title, strings.Repeat("-", len(title)), content)
		return
	}
	inner := p.styles.Title.Render(title) + "\n\n" + content
	fmt.Fprintln(p.w, p.styles.Box.Render(inner))
}

// Highlight returns text emphasised when styled.
func (p *Printer) Highlight(text string) string {
	return p.render(p.styles.Highlight, text)
}

// ScoreBar renders a score in [0,1] as a fixed-width bar.
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	filled := int(score*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
