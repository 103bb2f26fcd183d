// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credstore persists the token pair and cached user profile.
//
// The store is pure storage: it holds three keys (accessToken, refreshToken,
// user) that are always written together and cleared together. Every reader
// asks the store at call time rather than caching a copy, so the store is the
// single source of truth for credentials.
//
// # Backends
//
//   - MemoryKV: process-local, used by tests and the "memory" backend
//   - FileKV: one JSON document written atomically, optionally sealed with a
//     passphrase (argon2id + XChaCha20-Poly1305)
//   - SQLiteKV: a key/value table in a pure Go SQLite database
//
// # Usage
//
//	kv, err := credstore.Open(credstore.Options{Backend: credstore.BackendSQLite, Path: p})
//	if err != nil {
//	    return err
//	}
//	store := credstore.New(kv)
//	defer store.Close()
//
//	if err := store.Save(resp.Pair(), resp.User); err != nil {
//	    return err
//	}
package credstore
