// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/warden/internal/idle"
)

var (
	// Title is the screen heading.
	Title = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	// Label precedes a form field.
	Label = lipgloss.NewStyle().Foreground(TextSecondary)

	// FocusedLabel is Label for the field with focus.
	FocusedLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	// FieldError sits under a field that failed validation.
	FieldError = lipgloss.NewStyle().Foreground(Rose).Italic(true)

	// Hint is the key help line at the bottom of a screen.
	Hint = lipgloss.NewStyle().Foreground(TextMuted)

	// Panel frames a form or the dashboard.
	Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 3)

	// Banner is the full-width WARNING strip.
	Banner = lipgloss.NewStyle().
		Foreground(Amber).
		Background(AmberDeep).
		Bold(true).
		Padding(0, 1)

	// Modal frames the EXPIRING dialog.
	Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Rose).
		Padding(1, 3).
		Align(lipgloss.Center)

	// Role renders the user's role badge.
	Role = lipgloss.NewStyle().Foreground(Purple).Bold(true)
)

// StateColor returns the colour used for an idle state.
func StateColor(s idle.State) lipgloss.AdaptiveColor {
	switch s {
	case idle.Warning:
		return Amber
	case idle.Expiring, idle.Expired:
		return Rose
	default:
		return Emerald
	}
}

// RenderState renders an idle state badge, e.g. "[*] ACTIVE".
func RenderState(s idle.State) string {
	indicator := StatusIndicators.Active
	switch s {
	case idle.Warning:
		indicator = StatusIndicators.Warning
	case idle.Expiring, idle.Expired:
		indicator = StatusIndicators.Error
	}
	return lipgloss.NewStyle().Foreground(StateColor(s)).Bold(true).
		Render(indicator + " " + s.String())
}
