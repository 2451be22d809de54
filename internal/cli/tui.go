// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat.
//
// Command: tui
// Short:   Start the full-screen chat interface
//
// Examples:
//   brainchat tui
//   brainchat tui --model pro

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/brainchat/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the full-screen chat interface",
	Long: `Start the full-screen chat interface with a chat list, message view and
model status bar. Tab moves between the input and the chat list.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to load (lite, pro or an Ollama tag)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if err := RequiresTTY("tui"); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, _, err := newLogger(cfg, defaultLogFile())
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, logger, modelFlag)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	ctx := context.Background()
	if err := rt.client.CheckRunning(ctx); err != nil {
		return fmt.Errorf("Ollama is not reachable at %s. Start it with: ollama serve", cfg.Backend.OllamaURL)
	}
	if err := rt.app.OnStart(ctx); err != nil {
		return err
	}

	return tui.Run(rt.app, tui.Options{Markdown: ColorsEnabled()})
}
