// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport provides the authenticating http.RoundTripper.
//
// AuthTransport reads the access token from the credential store on every
// request and attaches it as a bearer token. When a response comes back 401
// it runs a single-flight refresh:
//
//   - the first request to see the 401 becomes the leader and calls the
//     refresher, detached from its own cancellation
//   - requests that 401 while the refresh is pending queue behind it and are
//     resolved in arrival order
//   - on success every queued request is replayed once with the new token
//   - on failure every queued request fails with the refresh error, the
//     credentials are cleared once and the forced-logout hook runs
//
// A replayed request is never intercepted again, so a second 401 is returned
// to the caller as is.
//
// # Usage
//
//	tr := transport.New(http.DefaultTransport, store, refresher,
//	    transport.WithOnForcedLogout(orch.ForcedLogout),
//	    transport.WithLogger(logger),
//	)
//	client := &http.Client{Transport: tr, Timeout: 15 * time.Second}
package transport
