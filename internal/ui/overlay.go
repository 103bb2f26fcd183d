// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/warden/internal/idle"
	"github.com/jeranaias/warden/internal/ui/styles"
)

// =============================================================================
// SESSION WARNING BANNER - shown in WARNING
// =============================================================================

// warningBanner is the full-width strip shown while the session is in
// WARNING. Any activity dismisses it by resetting the monitor.
func warningBanner(snap idle.Snapshot, width int) string {
	if snap.State != idle.Warning {
		return ""
	}
	if width <= 0 {
		width = 60
	}
	text := fmt.Sprintf("%s Session idle. Signing out in %s. Press any key to stay signed in.",
		styles.StatusIndicators.Warning, formatRemaining(snap.RemainingSeconds))
	return styles.Banner.Width(width).Render(text)
}

// =============================================================================
// SESSION EXPIRING MODAL - shown in EXPIRING
// =============================================================================

// expiringModal counts down the final window. Activity no longer resets the
// session here; only the explicit extend action does.
type expiringModal struct {
	bar       progress.Model
	window    int // seconds between EXPIRING and EXPIRED
	extending bool
	err       string
}

func newExpiringModal(cfg idle.Config) expiringModal {
	window := int((cfg.LogoutAfter - cfg.ExpiringAfter).Seconds())
	if window < 1 {
		window = 1
	}
	return expiringModal{
		bar:    progress.New(progress.WithSolidFill("#FB7185"), progress.WithWidth(40), progress.WithoutPercentage()),
		window: window,
	}
}

// percent is the share of the window left, clamped to [0, 1].
func (m expiringModal) percent(remaining int) float64 {
	p := float64(remaining) / float64(m.window)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func (m expiringModal) view(snap idle.Snapshot, width, height int) string {
	if width <= 0 {
		width = 60
	}
	if height <= 0 {
		height = 24
	}
	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	var parts []string
	titleStyle := lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	parts = append(parts, titleStyle.Render(styles.StatusIndicators.Error+" Session expiring"))
	parts = append(parts, "")

	timeStyle := lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)
	parts = append(parts, msgStyle.Render(
		"You will be signed out in "+timeStyle.Render(formatRemaining(snap.RemainingSeconds))))
	parts = append(parts, "")
	parts = append(parts, m.bar.ViewAs(m.percent(snap.RemainingSeconds)))
	parts = append(parts, "")

	switch {
	case m.extending:
		parts = append(parts, styles.Hint.Render("Extending session..."))
	case m.err != "":
		parts = append(parts, styles.RenderError(m.err))
	}
	parts = append(parts, styles.Hint.Render("e / enter: stay signed in    l: sign out now"))

	box := styles.Modal.Width(maxWidth).Render(lipgloss.JoinVertical(lipgloss.Center, parts...))
	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// formatRemaining formats seconds as M:SS.
func formatRemaining(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// padLines places s under a banner without shifting the layout width.
func padLines(banner, body string) string {
	if banner == "" {
		return body
	}
	return strings.Join([]string{banner, body}, "\n")
}
