// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// The lipgloss profile follows ColorsEnabled, so every style below renders
// as plain text when output is piped or NO_COLOR is set.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// ANSI 256 palette shared by the line-mode commands.
const (
	colorAccent  = lipgloss.Color("39")
	colorUser    = lipgloss.Color("51")
	colorAI      = lipgloss.Color("141")
	colorGood    = lipgloss.Color("42")
	colorActive  = lipgloss.Color("82")
	colorBad     = lipgloss.Color("196")
	colorWarn    = lipgloss.Color("214")
	colorText    = lipgloss.Color("252")
	colorLabel   = lipgloss.Color("245")
	colorDim     = lipgloss.Color("242")
	colorOutline = lipgloss.Color("240")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	TitleStyle   = fg(colorAccent).Bold(true)
	PromptStyle  = fg(colorAccent).Bold(true)
	ValueStyle   = fg(colorText)
	SuccessStyle = fg(colorGood).Bold(true)
	ErrorStyle   = fg(colorBad).Bold(true)
	WarningStyle = fg(colorWarn)
	DimStyle     = fg(colorDim)

	// Conversation and session lists.
	UserLabelStyle      = fg(colorUser).Bold(true)
	AssistantLabelStyle = fg(colorAI).Bold(true)
	PinStyle            = fg(colorWarn).Bold(true)
	ActiveStyle         = fg(colorActive)

	labelStyle     = fg(colorLabel).Width(14)
	separatorStyle = fg(colorOutline)
)

// RenderSeparator is a horizontal rule width cells wide.
func RenderSeparator(width int) string {
	return separatorStyle.Render(strings.Repeat("─", max(width, 1)))
}

// RenderLabel pads label so the values after it line up.
func RenderLabel(label string) string {
	return labelStyle.Render(label)
}

// statusBadges maps a model or check status to its badge.
var statusBadges = map[string]string{
	"ok": "OK", "ready": "OK", "loaded": "OK",
	"error": "FAIL", "fail": "FAIL", "failed": "FAIL",
	"warn": "WAIT", "warning": "WAIT", "loading": "WAIT", "pending": "WAIT",
}

// RenderStatus renders status as a colored [OK], [WAIT] or [FAIL] badge.
// Unknown statuses are shown dimmed in upper case.
func RenderStatus(status string) string {
	badge, ok := statusBadges[strings.ToLower(status)]
	if !ok {
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
	text := "[" + badge + "]"
	switch badge {
	case "OK":
		return SuccessStyle.Render(text)
	case "FAIL":
		return ErrorStyle.Render(text)
	default:
		return WarningStyle.Render(text)
	}
}
