// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for warden.
//
// Configuration lives in a single TOML file with sensible defaults,
// environment variable overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServerConfig: API base URL and request timeouts
//   - IdleConfig: Idle monitor thresholds
//   - StorageConfig: Credential store backend selection
//   - LogConfig / MetricsConfig: Ambient settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (WARDEN_*)
//   - The file passed with --config, or ~/.warden/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mon, err := idle.Start(cfg.Idle.Monitor(), orch.IdleLogout)
package config
