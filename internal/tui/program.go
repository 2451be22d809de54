// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import tea "github.com/charmbracelet/bubbletea"

// Publisher is a Core that announces state changes.
type Publisher interface {
	Core
	Subscribe() (<-chan struct{}, func())
}

// Run shows the chat screen until the user quits or the core closes.
func Run(core Publisher, opts Options) error {
	updates, unsubscribe := core.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(New(core, updates, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
