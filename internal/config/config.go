// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/storage"
)

// Config is the complete brainchat configuration. Field order is the order
// keys are listed by GetAllKeys.
type Config struct {
	Version string `toml:"version" json:"version"`

	// DefaultModel is a tier ("lite", "pro") or a raw model id loaded at startup.
	DefaultModel string `toml:"default_model" json:"default_model"`

	Backend BackendConfig `toml:"backend" json:"backend"`
	Models  ModelsConfig  `toml:"models" json:"models"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// BackendConfig points at the Ollama server.
type BackendConfig struct {
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// TimeoutSecs bounds the quick requests. Pulls and chats are unbounded.
	TimeoutSecs int `toml:"timeout" json:"timeout"`
	// KeepAlive is how long Ollama keeps a warmed model ("30m", "-1").
	KeepAlive string `toml:"keep_alive" json:"keep_alive"`
}

// ModelsConfig maps the catalog tiers to backend model ids.
type ModelsConfig struct {
	Lite string `toml:"lite" json:"lite"`
	Pro  string `toml:"pro" json:"pro"`
}

// StorageConfig selects where chat sessions are persisted.
type StorageConfig struct {
	// Driver is one of storage.Drivers().
	Driver string `toml:"driver" json:"driver"`
	// Dir is the data directory. Empty means ~/.brainchat/data.
	Dir string `toml:"dir" json:"dir"`
	// Key names the record the session collection is stored under.
	Key string `toml:"key" json:"key"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr" json:"addr"`
	RateLimit      float64  `toml:"rate_limit" json:"rate_limit"`
	RateBurst      int      `toml:"rate_burst" json:"rate_burst"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

type LogConfig struct {
	Level       string `toml:"level" json:"level"`
	Development bool   `toml:"development" json:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: string(model.TierLite),
		Backend: BackendConfig{
			OllamaURL:   "http://127.0.0.1:11434",
			TimeoutSecs: 120,
			KeepAlive:   "30m",
		},
		Models:  ModelsConfig{Lite: model.DefaultLiteModel, Pro: model.DefaultProModel},
		Storage: StorageConfig{Driver: storage.DriverFile, Key: storage.DefaultKey},
		Server:  ServerConfig{Addr: "127.0.0.1:8484", RateLimit: 10, RateBurst: 20},
		Log:     LogConfig{Level: "info"},
	}
}

// Timeout returns TimeoutSecs as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// Catalog builds the model catalog from the configured tier ids.
func (c *Config) Catalog() model.Catalog {
	return model.NewCatalog(c.Models.Lite, c.Models.Pro)
}

// DataDir resolves Storage.Dir, expanding a leading "~".
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "data"), nil
	}
	if c.Storage.Dir != "~" && !strings.HasPrefix(c.Storage.Dir, "~/") {
		return c.Storage.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(c.Storage.Dir, "~")), nil
}

// Clone returns a copy that shares no slices with c.
func (c *Config) Clone() *Config {
	out := *c
	out.Server.AllowedOrigins = slices.Clone(c.Server.AllowedOrigins)
	return &out
}

// String renders the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SetDefaults fills what a partial file or an override left empty and
// normalizes the driver name and backend URL.
func (c *Config) SetDefaults() {
	d := Default()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&c.Version, d.Version)
	fill(&c.DefaultModel, d.DefaultModel)
	fill(&c.Backend.OllamaURL, d.Backend.OllamaURL)
	fill(&c.Backend.KeepAlive, d.Backend.KeepAlive)
	fill(&c.Models.Lite, d.Models.Lite)
	fill(&c.Models.Pro, d.Models.Pro)
	fill(&c.Storage.Driver, d.Storage.Driver)
	fill(&c.Storage.Key, d.Storage.Key)
	fill(&c.Server.Addr, d.Server.Addr)
	fill(&c.Log.Level, d.Log.Level)
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.Backend.OllamaURL = strings.TrimRight(c.Backend.OllamaURL, "/")
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one rejected key.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateErrors is every problem Validate found, in key order.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidateErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidateErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.add(field, "must not be empty")
	}
}

// Validate reports every invalid key at once as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	errs.required("default_model", c.DefaultModel)

	switch u, err := url.Parse(c.Backend.OllamaURL); {
	case err != nil || u.Host == "":
		errs.add("backend.ollama_url", "invalid URL %q", c.Backend.OllamaURL)
	case u.Scheme != "http" && u.Scheme != "https":
		errs.add("backend.ollama_url", "scheme %q is not http or https", u.Scheme)
	}
	if c.Backend.TimeoutSecs < 0 {
		errs.add("backend.timeout", "must not be negative")
	}

	errs.required("models.lite", c.Models.Lite)
	errs.required("models.pro", c.Models.Pro)

	drivers := storage.Drivers()
	if !slices.Contains(drivers, strings.ToLower(c.Storage.Driver)) {
		errs.add("storage.driver", "unknown driver %q (want %s)", c.Storage.Driver, strings.Join(drivers, ", "))
	}
	errs.required("storage.key", c.Storage.Key)

	if c.Server.RateLimit < 0 {
		errs.add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs.add("server.rate_burst", "must be at least 1 when rate_limit is set")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs.add("log.level", "unknown level %q", c.Log.Level)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
