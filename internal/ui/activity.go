// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/warden/internal/idle"
)

// ActivityKind maps terminal input to an idle activity kind. Mouse release
// and unknown events are not activity.
func ActivityKind(msg tea.Msg) (idle.Kind, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return idle.KeyDown, true
	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseLeft, tea.MouseRight, tea.MouseMiddle:
			return idle.PointerDown, true
		case tea.MouseWheelUp, tea.MouseWheelDown:
			return idle.Scroll, true
		case tea.MouseMotion:
			return idle.PointerMove, true
		}
	}
	return 0, false
}
