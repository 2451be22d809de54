// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// bootstrap.go - Builds the core from configuration for every command.

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/config"
	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/logging"
	"github.com/jeranaias/brainchat/internal/ollama"
	"github.com/jeranaias/brainchat/internal/storage"
)

// closeTimeout bounds how long a command waits for pending writes on exit.
const closeTimeout = 10 * time.Second

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFromPath(configFlag)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("Warning:"), err)
		}
	}

	if logLevelArg != "" {
		cfg.Log.Level = logLevelArg
	}
	if dataDirFlag != "" {
		cfg.Storage.Dir = dataDirFlag
	}
	if driverFlag != "" {
		cfg.Storage.Driver = driverFlag
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// newLogger builds the process logger and its level handle. An empty logFile
// logs to stderr.
func newLogger(cfg *config.Config, logFile string) (*zap.Logger, zap.AtomicLevel, error) {
	opts := logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		opts.OutputPaths = []string{logFile}
	}
	return logging.Build(opts)
}

// defaultLogFile is where interactive commands log so output stays readable.
func defaultLogFile() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "brainchat.log")
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:   cfg.Backend.OllamaURL,
		Timeout:   cfg.Backend.Timeout(),
		KeepAlive: cfg.Backend.KeepAlive,
	})
}

// openStorage opens the configured key-value backend.
func openStorage(cfg *config.Config) (storage.KV, error) {
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	kv, err := storage.Open(cfg.Storage.Driver, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage in %s: %w", cfg.Storage.Driver, dir, err)
	}
	return kv, nil
}

// openAdapter opens persisted sessions without starting a model.
func openAdapter(cfg *config.Config, logger *zap.Logger) (*storage.Adapter, error) {
	kv, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewAdapter(kv, cfg.Storage.Key, logger.Named("storage")), nil
}

// runtime is a fully wired core plus the pieces commands use directly.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	client *ollama.Client
	app    *app.App
}

// newRuntime wires the core. defaultModel overrides the configured model when
// non-empty.
func newRuntime(cfg *config.Config, logger *zap.Logger, defaultModel string) (*runtime, error) {
	kv, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = cfg.DefaultModel
	}

	client := newOllamaClient(cfg)
	core := app.New(app.Deps{
		Backend:      engine.NewOllamaBackend(client, logger.Named("engine")),
		Catalog:      cfg.Catalog(),
		KV:           kv,
		StorageKey:   cfg.Storage.Key,
		DefaultModel: defaultModel,
		Logger:       logger,
	})
	return &runtime{cfg: cfg, logger: logger, client: client, app: core}, nil
}

// close flushes pending writes and syncs the logger.
func (r *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := r.app.Close(ctx)
	_ = r.logger.Sync()
	return err
}
