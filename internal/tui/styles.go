// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// COLORS
// =============================================================================

// All colors adapt to light and dark terminals.
var (
	Purple        = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan          = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald       = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Rose          = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber         = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	SurfaceBright = lipgloss.AdaptiveColor{Light: "#FAFAFA", Dark: "#313244"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styles the views render with.
type Theme struct {
	Header       lipgloss.Style
	StatusBar    lipgloss.Style
	Sidebar      lipgloss.Style
	SidebarFocus lipgloss.Style
	GroupTitle   lipgloss.Style
	Item         lipgloss.Style
	ItemActive   lipgloss.Style
	ItemCursor   lipgloss.Style
	Pin          lipgloss.Style
	UserLabel    lipgloss.Style
	AILabel      lipgloss.Style
	Content      lipgloss.Style
	Muted        lipgloss.Style
	Error        lipgloss.Style
	Warning      lipgloss.Style
	Success      lipgloss.Style
	Separator    lipgloss.Style
}

// DefaultTheme returns the standard theme.
func DefaultTheme() *Theme {
	border := lipgloss.NormalBorder()
	return &Theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan).
			Background(SurfaceDim).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(TextSecondary).
			Background(SurfaceDim).
			Padding(0, 1),
		Sidebar: lipgloss.NewStyle().
			Border(border, false, true, false, false).
			BorderForeground(Overlay).
			PaddingRight(1),
		SidebarFocus: lipgloss.NewStyle().
			Border(border, false, true, false, false).
			BorderForeground(Purple).
			PaddingRight(1),
		GroupTitle: lipgloss.NewStyle().Bold(true).Foreground(TextSecondary),
		Item:       lipgloss.NewStyle().Foreground(TextPrimary),
		ItemActive: lipgloss.NewStyle().Bold(true).Foreground(Purple),
		ItemCursor: lipgloss.NewStyle().Background(SurfaceBright),
		Pin:        lipgloss.NewStyle().Foreground(Amber),
		UserLabel:  lipgloss.NewStyle().Bold(true).Foreground(Cyan),
		AILabel:    lipgloss.NewStyle().Bold(true).Foreground(Purple),
		Content:    lipgloss.NewStyle().Foreground(TextPrimary),
		Muted:      lipgloss.NewStyle().Foreground(TextMuted),
		Error:      lipgloss.NewStyle().Foreground(Rose),
		Warning:    lipgloss.NewStyle().Foreground(Amber),
		Success:    lipgloss.NewStyle().Foreground(Emerald),
		Separator:  lipgloss.NewStyle().Foreground(Overlay),
	}
}
