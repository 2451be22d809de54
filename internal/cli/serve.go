// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/config"
	"github.com/jeranaias/brainchat/internal/logging"
	"github.com/jeranaias/brainchat/internal/server"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the chat core over HTTP with server-sent events for state updates.

Examples:
  brainchat serve
  brainchat serve --addr 127.0.0.1:9000
  brainchat serve --model pro`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to load on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddrFlag != "" {
		cfg.Server.Addr = serveAddrFlag
	}

	logger, level, err := newLogger(cfg, "")
	if err != nil {
		return err
	}
	stopWatch := watchConfig(logger, level)
	defer stopWatch()
	rt, err := newRuntime(cfg, logger, modelFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.app.OnStart(ctx); err != nil {
		_ = rt.close()
		return err
	}

	server.Version = Version
	srv := server.NewServer(rt.app, server.Options{
		Addr:           cfg.Server.Addr,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Backend:        rt.client,
		Logger:         logger.Named("server"),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Fprintf(cmd.OutOrStdout(), "%s listening on http://%s\n", SuccessStyle.Render("brainchat"), srv.Addr())

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("SERVER_SHUTDOWN_FAILED", zap.Error(err))
	}
	closeErr := rt.close()
	return errors.Join(serveErr, closeErr)
}

// watchConfig follows log level changes in the config file while serving.
// The returned func stops watching.
func watchConfig(logger *zap.Logger, level zap.AtomicLevel) func() {
	path, err := configFilePath()
	if err != nil {
		logger.Warn("CONFIG_WATCH_FAILED", zap.Error(err))
		return func() {}
	}
	w, err := config.NewWatcher(path, 0, func(cfg *config.Config, err error) {
		applyReload(logger, level, cfg, err)
	})
	if err != nil {
		logger.Warn("CONFIG_WATCH_FAILED", zap.Error(err))
		return func() {}
	}
	if err := w.Watch(); err != nil {
		_ = w.Close()
		logger.Warn("CONFIG_WATCH_FAILED", zap.Error(err))
		return func() {}
	}
	logger.Debug("CONFIG_WATCH_START", zap.String("path", w.Path()))
	return func() { _ = w.Close() }
}

// applyReload updates the log level from a reloaded config. --log-level pins
// the level for the life of the process.
func applyReload(logger *zap.Logger, level zap.AtomicLevel, cfg *config.Config, err error) {
	if err != nil {
		logger.Warn("CONFIG_RELOAD_FAILED", zap.Error(err))
		return
	}
	if logLevelArg != "" {
		return
	}
	next, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("CONFIG_RELOAD_FAILED", zap.Error(err))
		return
	}
	if next != level.Level() {
		level.SetLevel(next)
		logger.Info("LOG_LEVEL_CHANGED", zap.Stringer("level", next))
	}
}
