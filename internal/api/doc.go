// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the typed REST client for the authentication backend.
//
// The client knows nothing about credentials. Authenticated calls get their
// bearer token from the http.Client's transport (see package transport), and
// the refresh endpoint is called through a separate bare client so it never
// re-enters the interceptor.
//
// Every failure is an *Error carrying a Kind, so callers can branch with
// errors.Is(err, api.ErrUnauthorized) or api.KindOf(err), and render it with
// api.Message(err).
package api
