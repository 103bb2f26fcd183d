// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the warden TUI.

All colours use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Every coloured status is paired with an ASCII indicator from
StatusIndicators so it stays readable without colour.

# Colours (colors.go)

	Cyan    - brand, focus
	Emerald - success, ACTIVE
	Amber   - warnings, WARNING
	Rose    - errors, EXPIRING / EXPIRED
	Purple  - role badges

# Component styles (styles.go)

	Title, Label, FocusedLabel, FieldError, Hint - form text
	Panel  - form and dashboard frame
	Banner - the WARNING strip
	Modal  - the EXPIRING dialog

# Usage

	header := styles.Title.Render("Sign in")
	badge := styles.RenderState(snap.State)
*/
package styles
