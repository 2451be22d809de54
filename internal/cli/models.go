// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the model catalog and installed models",
	Long: `Show the lite and pro catalog entries and whether Ollama has them.

Examples:
  brainchat models
  brainchat models pull pro`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull <lite|pro|tag>",
	Short: "Download a model into Ollama",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsPull,
}

func init() {
	modelsCmd.AddCommand(modelsPullCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newOllamaClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	installed, listErr := client.ListModels(ctx)
	writeModelTable(cmd.OutOrStdout(), cfg.Catalog(), installed, listErr)
	return nil
}

// writeModelTable prints the catalog with install status, then any other
// installed models.
func writeModelTable(w io.Writer, catalog model.Catalog, installed []ollama.ModelInfo, listErr error) {
	byName := make(map[string]ollama.ModelInfo, len(installed))
	for _, m := range installed {
		byName[m.Name] = m
	}

	fmt.Fprintln(w, TitleStyle.Render("Catalog"))
	for _, m := range catalog.Models() {
		status := DimStyle.Render("unknown")
		if listErr == nil {
			if info, ok := byName[m.ID]; ok {
				status = SuccessStyle.Render("installed") + DimStyle.Render(" "+formatSize(info.Size))
			} else {
				status = WarningStyle.Render("not pulled")
			}
		}
		fmt.Fprintf(w, "  %-5s %-24s %s\n", m.Tier, m.ID, status)
	}

	if listErr != nil {
		fmt.Fprintf(w, "\n%s %v\n", WarningStyle.Render("Ollama:"), listErr)
		return
	}

	var others []ollama.ModelInfo
	for _, m := range installed {
		if !catalog.Resolve(m.Name).InCatalog() {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Also installed"))
	for _, m := range others {
		fmt.Fprintf(w, "  %-30s %s\n", m.Name, DimStyle.Render(formatSize(m.Size)))
	}
}

func runModelsPull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newOllamaClient(cfg)
	info := cfg.Catalog().Resolve(args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pulling %s\n", info.ID)
	last := ""
	err = client.Pull(ctx, info.ID, func(p ollama.PullProgress) {
		if text := p.Text(); text != last {
			last = text
			fmt.Fprintf(out, "\r\033[K%s", DimStyle.Render(text))
		}
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("pull %s: %w", info.ID, err)
	}
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Pulled"), info.ID)
	return nil
}

// formatSize formats a byte count with a binary unit.
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
