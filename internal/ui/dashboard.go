// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/jeranaias/warden/internal/idle"
	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/ui/styles"
	"github.com/jeranaias/warden/internal/util"
)

// maxEmailWidth keeps long addresses from stretching the panel.
const maxEmailWidth = 40

// dashboard is the protected screen.
type dashboard struct {
	user    model.User
	status  string
	pinging bool
}

func (d dashboard) view(snap idle.Snapshot) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("warden"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", styles.Label.Render("Signed in as"), util.TruncateWidth(d.user.Email, maxEmailWidth))
	fmt.Fprintf(&b, "%s %s\n", styles.Label.Render("Role        "), styles.Role.Render(d.user.Role.String()))
	fmt.Fprintf(&b, "%s %s\n", styles.Label.Render("Session     "), styles.RenderState(snap.State))
	b.WriteByte('\n')

	switch {
	case d.pinging:
		b.WriteString(styles.Hint.Render("Pinging..."))
		b.WriteString("\n\n")
	case d.status != "":
		b.WriteString(d.status)
		b.WriteString("\n\n")
	}

	b.WriteString(styles.Hint.Render("p: ping server  l: sign out  q: quit"))
	return styles.Panel.Render(b.String())
}
