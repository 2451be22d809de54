// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the brainchat command line.
//
// Commands are built with cobra. Every command loads configuration the same
// way (config file, then environment, then flags) and builds the core from it.
//
// # Commands Overview
//
//   - chat: Interactive REPL (the default when no command is given)
//   - tui: Full-screen chat with a chat list and status bar
//   - serve: HTTP API with server-sent events
//   - sessions: list, delete, pin and export saved sessions offline
//   - models: Catalog with install status, and "models pull"
//   - config: show, get, set and path
//   - doctor: Health checks, with --json and --fix
//   - version: Build information
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// Commands that print structured data accept --json and emit a JSONResponse
// envelope.
package cli
