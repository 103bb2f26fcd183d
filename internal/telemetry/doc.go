// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes Prometheus collectors for the session lifecycle.
//
// # Key Types
//
//   - Metrics: counters and histograms for refresh cycles, replays, forced
//     logouts, idle transitions and auth calls
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.New(reg)
//	tr := transport.New(base, store, refresher, transport.WithMetrics(m))
//
//	http.Handle("/metrics", telemetry.Handler(reg))
//
// All recording methods are safe on a nil *Metrics, so components can take
// an optional collector without nil checks at every call site.
//
// # Privacy
//
// No label ever carries a token, email or user ID.
package telemetry
