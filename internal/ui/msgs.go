// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/jeranaias/warden/internal/idle"
	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/session"
)

// idleMsg carries a monitor snapshot. gen identifies the monitor so
// snapshots from a stopped one are dropped.
type idleMsg struct {
	gen  int
	snap idle.Snapshot
}

// sessionMsg carries an orchestrator lifecycle event.
type sessionMsg struct {
	ev session.Event
}

// authResultMsg is the outcome of a login or register submission.
type authResultMsg struct {
	user *model.User
	err  error
}

// pingResultMsg is the outcome of the dashboard's ping.
type pingResultMsg struct {
	resp *model.PingResponse
	err  error
}

// extendResultMsg is the outcome of the modal's extend action.
type extendResultMsg struct {
	err error
}

// logoutResultMsg is the outcome of a user-initiated logout.
type logoutResultMsg struct {
	err error
}
