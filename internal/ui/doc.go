// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea front end for warden.
//
// App routes between a sign-in form (login or register) and a dashboard
// that is only reachable while a session is live. While signed in an idle
// monitor runs; key presses, clicks, scrolls and pointer motion count as
// activity. The monitor's WARNING state shows a banner across the top and
// EXPIRING raises a modal with a countdown bar plus extend and logout
// actions.
//
// Monitor snapshots and session events arrive on callback goroutines and are
// funnelled into the program through a buffered inbox that App drains with a
// listening command, so all state changes happen inside Update.
package ui
