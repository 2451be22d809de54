// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves brainchat settings.
//
// Settings live in ~/.brainchat/config.toml (config.json is read when no
// TOML file exists). Later sources win:
//
//  1. built-in defaults
//  2. the config file
//  3. BRAINCHAT_* environment variables
//  4. command-line flags, applied by the CLI
//
// Every setting has a dotted key taken from its TOML name, which Get and Set
// accept:
//
//	cfg, err := config.Load()
//	_ = cfg.Set("storage.driver", "bolt")
//	url, _ := cfg.Get("backend.ollama_url")
//
// Watcher re-reads the file when it changes so a running server can pick up
// a new log level without a restart.
package config
