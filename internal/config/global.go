// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"sync"
)

// The process-wide config. The CLI installs the effective config with
// SetGlobal once flags are applied; anything else reads it with Global.
var global struct {
	mu  sync.Mutex
	cfg *Config
}

// Global returns the process config, loading it on first use.
func Global() *Config {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.cfg == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		global.cfg = cfg
	}
	return global.cfg
}

// SetGlobal replaces the process config.
func SetGlobal(cfg *Config) {
	global.mu.Lock()
	global.cfg = cfg
	global.mu.Unlock()
}

// ReloadGlobal re-reads the config files. On error the current config stays.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting forgets the process config so the next Global loads.
func ResetGlobalForTesting() {
	SetGlobal(nil)
}
