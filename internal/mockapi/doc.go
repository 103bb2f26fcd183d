// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockapi is an in-memory development backend for the auth API.
//
// It serves the five endpoints the client consumes under /api, issues
// HS256 access tokens carrying role and email claims, rotates refresh tokens
// on every refresh, and exposes knobs tests use to force the lifecycle
// paths: expiring every access token, revoking refresh tokens and counting
// refresh and logout calls.
//
// It is not a reference server. Passwords are bcrypt-hashed at minimum cost
// and all state is lost on exit.
//
// # Usage
//
//	srv := mockapi.New()
//	srv.AddUser("ada@example.com", "Secret1", "admin")
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//
//	orch := session.New(store, session.WithBaseURL(ts.URL+"/api"))
package mockapi
