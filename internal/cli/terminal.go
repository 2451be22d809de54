// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for the brainchat CLI.
//
// Interactive terminals get colors, prompts and rendered Markdown. Piped
// output gets plain text so `brainchat sessions export | less` stays clean.

package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when stdout is not a terminal.
	DefaultTerminalWidth = 80

	// MinTerminalWidth keeps menus and previews readable in narrow windows.
	MinTerminalWidth = 40
)

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the stdout width clamped to MinTerminalWidth.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 0
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	switch {
	case width <= 0:
		return DefaultTerminalWidth
	case width < MinTerminalWidth:
		return MinTerminalWidth
	default:
		return width
	}
}

// =============================================================================
// COLORS
// =============================================================================

var colors struct {
	once    sync.Once
	enabled bool
}

// ColorsEnabled reports whether output should be styled. NO_COLOR wins over
// FORCE_COLOR; without either, colors follow whether stdout is a terminal.
func ColorsEnabled() bool {
	colors.once.Do(func() {
		colors.enabled = wantColors(os.Getenv, IsStdoutTTY())
	})
	return colors.enabled
}

func wantColors(getenv func(string) string, tty bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	return tty
}

// ForceColorsEnabled overrides detection. Used by tests.
func ForceColorsEnabled(enabled bool) {
	colors.once = sync.Once{}
	colors.once.Do(func() { colors.enabled = enabled })
}

// GetColorProfile returns the profile lipgloss renders with: plain ASCII when
// colors are off, otherwise whatever the terminal supports.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// INTERACTIVE COMMANDS
// =============================================================================

// RequiresTTY fails when stdin is not a terminal. command names the command
// for the error message.
func RequiresTTY(command string) error {
	if !IsTTY() {
		return &TTYRequiredError{Command: command}
	}
	return nil
}

// TTYRequiredError is returned by interactive commands run without a
// terminal.
type TTYRequiredError struct {
	Command string
}

func (e *TTYRequiredError) Error() string {
	if e.Command == "" {
		return "stdin is not a terminal"
	}
	return "brainchat " + e.Command + " needs an interactive terminal; use 'brainchat serve' for scripted access"
}
