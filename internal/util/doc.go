// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across warden.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - Fingerprint: short, non-reversible identifier for secrets in logs
//   - TruncateWidth: cell-width aware truncation for terminal display
//
// # Usage
//
//	// Never log a token, log its fingerprint
//	logger.Info("token refreshed", "access", util.Fingerprint(tok))
//
//	// Write credentials atomically to prevent torn files
//	err := util.AtomicWriteFile(path, data, 0600)
package util
