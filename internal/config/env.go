// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "os"

// envOverrides maps each BRAINCHAT_* variable to the key it replaces.
var envOverrides = []struct {
	env string
	key string
}{
	{"BRAINCHAT_OLLAMA_URL", "backend.ollama_url"},
	{"BRAINCHAT_MODEL", "default_model"},
	{"BRAINCHAT_STORAGE_DRIVER", "storage.driver"},
	{"BRAINCHAT_DATA_DIR", "storage.dir"},
	{"BRAINCHAT_ADDR", "server.addr"},
	{"BRAINCHAT_LOG_LEVEL", "log.level"},
}

// ApplyEnvOverrides copies every non-empty BRAINCHAT_* variable over its key.
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v := os.Getenv(o.env); v != "" {
			// All overridden keys are strings, so Set cannot fail.
			_ = c.Set(o.key, v)
		}
	}
}
