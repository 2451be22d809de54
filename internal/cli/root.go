// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFlag  string
	logLevelArg string
	dataDirFlag string
	driverFlag  string
	modelFlag   string

	// Version info (set at build time via -ldflags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootCmd represents the base command. Without a subcommand it starts chat.
var rootCmd = &cobra.Command{
	Use:   "brainchat",
	Short: "Local chat sessions backed by Ollama",
	Long: `brainchat keeps a collection of chat sessions with a locally running
model. Sessions persist between runs and get short titles automatically.

Examples:
  brainchat                         Start interactive chat
  brainchat chat --model pro        Chat with the pro tier
  brainchat serve                   Serve the HTTP API
  brainchat sessions list           List saved sessions
  brainchat sessions export 2       Print a session as Markdown
  brainchat models                  Show the catalog and installed models
  brainchat config set models.pro qwen2.5:7b`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.brainchat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelArg, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for persisted sessions")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Storage driver (file, bolt, sqlite)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to load (lite, pro or an Ollama tag)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "brainchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}
