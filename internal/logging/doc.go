// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the slog loggers used across warden.
//
// Three formats are supported: "json" for machine consumption, "text" for
// the stock key=value handler and "pretty" for a coloured single-line console
// format. Colour is decided by termenv from the destination writer, so piping
// output to a file disables it automatically.
//
// Event names are upper snake case messages (TOKEN_REFRESH_START,
// SESSION_WARNING, LOGOUT_FORCED) and the pretty handler highlights them.
package logging
