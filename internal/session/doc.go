// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the composition root for authentication state.
//
// The Orchestrator owns login, register and logout, hydrates the current
// user from the credential store on construction, and wires the
// authenticating transport to a Refresher that renews credentials over a
// bare client.
//
// # Key Types
//
//   - Orchestrator: login/register/logout/current user, event fan-out
//   - Refresher: token renewal (bare client) and the session-extend probe
//   - Event: lifecycle notification delivered to subscribers
//
// # Usage
//
//	orch := session.New(store,
//	    session.WithBaseURL(cfg.Server.BaseURL),
//	    session.WithLogger(logger),
//	)
//	defer orch.Close()
//
//	unsubscribe := orch.Subscribe(func(ev session.Event) {
//	    if ev.Kind == session.EventForcedLogout {
//	        // back to the login screen
//	    }
//	})
//	defer unsubscribe()
//
//	user, err := orch.Login(ctx, model.Credentials{Email: e, Password: p})
//
// # Logout
//
// Logout is local-first: in-memory state and the store are cleared before
// the network call is attempted, and the network call runs in the
// background. Close waits for it.
package session
