// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorError   = lipgloss.Color("#E74C3C")
	colorTitle   = lipgloss.Color("#20B9B4")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// styler renders styled text only when the destination is a terminal.
type styler struct {
	enabled bool
	ok      lipgloss.Style
	bad     lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
}

func newStyler(w io.Writer) styler {
	return styler{
		enabled: isTerminal(w),
		ok:      lipgloss.NewStyle().Foreground(colorSuccess),
		bad:     lipgloss.NewStyle().Foreground(colorError).Bold(true),
		heading: lipgloss.NewStyle().Foreground(colorTitle).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styler) success(text string) string { return s.render(s.ok, "✓ "+text) }
func (s styler) fail(text string) string    { return s.render(s.bad, "✗ "+text) }
func (s styler) title(text string) string   { return s.render(s.heading, text) }
func (s styler) dim(text string) string     { return s.render(s.muted, text) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeJSON writes v indented for a terminal and compact otherwise, so
// piped output stays one record per line.
func writeJSON(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if isTerminal(w) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
