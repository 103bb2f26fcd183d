// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/warden/internal/ui/styles"
)

// printer writes styled lines to one output. Colour follows that output,
// so redirected output stays plain.
type printer struct {
	w io.Writer

	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(colorProfile(w))
	return &printer{
		w:       w,
		success: r.NewStyle().Foreground(styles.Emerald).Bold(true),
		failure: r.NewStyle().Foreground(styles.Rose).Bold(true),
		warning: r.NewStyle().Foreground(styles.Amber).Bold(true),
		label:   r.NewStyle().Foreground(styles.Cyan).Width(10),
		dim:     r.NewStyle().Foreground(styles.TextMuted),
	}
}

func (p *printer) ok(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render(styles.StatusIndicators.Success+" "+fmt.Sprintf(format, args...)))
}

func (p *printer) warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warning.Render(styles.StatusIndicators.Warning+" "+fmt.Sprintf(format, args...)))
}

func (p *printer) fail(msg string) {
	fmt.Fprintln(p.w, p.failure.Render(styles.StatusIndicators.Error+" "+msg))
}

// field prints an aligned "label value" row.
func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.w, "%s %v\n", p.label.Render(label), value)
}

func (p *printer) hint(msg string) {
	fmt.Fprintln(p.w, p.dim.Render(msg))
}
