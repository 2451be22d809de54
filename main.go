// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command brainchat keeps local chat sessions with models served by Ollama.
// Run "brainchat --help" for the commands.
package main

import "github.com/jeranaias/brainchat/internal/cli"

// Overridden at build time with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version, cli.GitCommit, cli.BuildDate = Version, GitCommit, BuildDate
	cli.Execute()
}
