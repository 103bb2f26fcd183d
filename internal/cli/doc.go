// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the warden command line.

# Commands

	warden                 open the terminal UI (same as "warden tui")
	warden login           sign in and store the session
	warden register        create an account and sign in
	warden logout          end the stored session
	warden whoami          show the signed-in user
	warden ping            call the authenticated health endpoint
	warden config ...      show, get, set, path, init
	warden version         print build information

# Global flags

	--config PATH      config file (default ~/.warden/config.toml)
	--log-level LEVEL  debug, info, warn or error
	--json             machine-readable output

# Exit codes

Errors map to the codes in errors.go: 3 for configuration problems, 4 when
the user is not signed in or the backend rejects the credentials, 5 for
network failures and 8 for timeouts.
*/
package cli
