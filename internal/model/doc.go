// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the credential store,
// the API client and the session orchestrator.
//
// # Key Types
//
//   - TokenPair: access + refresh token, written and cleared as a unit
//   - User: cached profile with a display-only Role derived from the access token
//   - AuthResponse: wire shape returned by login, register and refresh
//   - Credentials: email/password submitted by the user
//   - PingResponse: body of the session-extend probe
//   - Claims: access token claims (role, email, sub, iat, exp), never verified
//
// # Usage
//
//	resp, err := client.Login(ctx, model.Credentials{Email: e, Password: p})
//	if err != nil {
//	    return err
//	}
//	err = store.Save(resp.Pair(), resp.User)
package model
