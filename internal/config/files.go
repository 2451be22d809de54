// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/brainchat/internal/util"
)

const (
	dirName  = ".brainchat"
	tomlName = "config.toml"
	jsonName = "config.json"

	// tomlHeader starts every saved TOML file.
	tomlHeader = "# brainchat configuration file\n# Generated by brainchat - edit with care\n\n"
)

// ConfigDir is ~/.brainchat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func configFile(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML is the preferred config file.
func ConfigPathTOML() (string, error) { return configFile(tomlName) }

// ConfigPathJSON is read only when no TOML file exists.
func ConfigPathJSON() (string, error) { return configFile(jsonName) }

// EnsureConfigDir creates ConfigDir, owner-only.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// Load reads ~/.brainchat/config.toml, or config.json when there is no TOML
// file, then applies BRAINCHAT_* overrides.
//
// A file that fails to load is not fatal: Load returns the defaults (with
// overrides) together with that file's error so the caller can warn.
func Load() (*Config, error) {
	var fileErr error
	for _, locate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := locate()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		fileErr = err
		break
	}

	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, fileErr
}

// LoadFromPath reads one file over the defaults. The format follows the
// extension: ".json" is JSON, anything else TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decoderFor(path)(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies overrides and defaults, then validates.
func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func decoderFor(path string) func(*Config, string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON
	}
	return LoadTOML
}

// LoadTOML decodes path into cfg. Keys missing from the file keep cfg's values.
func LoadTOML(cfg *Config, path string) error {
	tighten(path)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes path into cfg. Keys missing from the file keep cfg's values.
func LoadJSON(cfg *Config, path string) error {
	tighten(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// tighten drops group and other access from a config file. The file may
// name a backend on the network, so it is kept private.
func tighten(path string) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil && info.Mode().Perm()&0077 == 0 {
		return
	}
	if err == nil {
		err = os.Chmod(path, 0600)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not restrict permissions on %s: %v\n", path, err)
	}
}

// SaveTOML atomically replaces path with cfg, owner read/write only.
func SaveTOML(cfg *Config, path string) error {
	err := util.WriteAtomic(path, 0600, func(w io.Writer) error {
		if _, err := io.WriteString(w, tomlHeader); err != nil {
			return err
		}
		return toml.NewEncoder(w).Encode(cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// SaveJSON atomically replaces path with cfg as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	err := util.WriteAtomic(path, 0600, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
