// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/brainchat/internal/lifecycle"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderScreen lays out header, sidebar and messages, input, then status.
func (m Model) renderScreen() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	status := m.renderStatusBar()
	input := m.renderInput()

	main := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), input)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(m.viewport.Height+2), main)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m Model) renderHeader() string {
	title := "brainchat"
	if active, ok := m.activeSession(); ok {
		title += "  " + util.TruncateWidth(active.Title, m.width/2)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// renderModelStatus shows the lifecycle state with a spinner while loading.
func (m Model) renderModelStatus() string {
	st := m.state.Model
	switch {
	case st.IsLoaded:
		return m.theme.Success.Render(st.CurrentModelID)
	case st.StatusText == lifecycle.StatusLoadFailed:
		return m.theme.Error.Render(st.StatusText)
	case loading(st):
		text := st.StatusText
		if st.LoadProgressPercent > 0 {
			text = fmt.Sprintf("%s %d%%", text, st.LoadProgressPercent)
		}
		return m.theme.Warning.Render(m.spinner.View() + " " + text)
	default:
		return m.theme.Muted.Render(st.StatusText)
	}
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(height int) string {
	inner := sidebarWidth - 2
	var lines []string

	sessions := m.sidebarSessions()
	pinnedHeader, othersHeader := false, false
	for i, s := range sessions {
		if s.IsPinned && !pinnedHeader {
			lines = append(lines, m.theme.GroupTitle.Render("Pinned"))
			pinnedHeader = true
		}
		if !s.IsPinned && !othersHeader {
			if pinnedHeader {
				lines = append(lines, "")
			}
			lines = append(lines, m.theme.GroupTitle.Render("Chats"))
			othersHeader = true
		}
		lines = append(lines, m.renderSidebarItem(s, i, inner))
	}
	if len(sessions) == 0 {
		lines = append(lines, m.theme.Muted.Render("No chats yet"))
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	style := m.theme.Sidebar
	if m.focus == focusSidebar {
		style = m.theme.SidebarFocus
	}
	return style.Width(inner).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderSidebarItem(s model.ChatSession, index, width int) string {
	marker := "  "
	if s.ID == m.state.ActiveID {
		marker = "> "
	}
	suffix := ""
	if s.IsPinned {
		suffix = " *"
	}
	title := util.TruncateWidth(util.SingleLine(s.Title), width-len(marker)-len(suffix))
	line := util.PadWidth(marker+title+suffix, width)

	style := m.theme.Item
	if s.ID == m.state.ActiveID {
		style = m.theme.ItemActive
	}
	if m.focus == focusSidebar && index == m.cursor {
		style = style.Inherit(m.theme.ItemCursor)
	}
	return style.Render(line)
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	if len(m.state.Messages) == 0 {
		return m.renderEmptyState()
	}
	parts := make([]string, 0, len(m.state.Messages))
	for _, msg := range m.state.Messages {
		parts = append(parts, m.renderMessage(msg))
	}
	if m.sending {
		parts = append(parts, m.theme.Muted.Render(m.spinner.View()+" thinking..."))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(msg model.Message) string {
	if msg.IsUser() {
		body := lipgloss.NewStyle().Width(m.contentWidth()).Render(msg.Content)
		return m.theme.UserLabel.Render(msg.Role.DisplayName()) + "\n" + m.theme.Content.Render(body)
	}

	body := msg.Content
	if m.md != nil {
		if out, err := m.md.Render(msg.Content); err == nil {
			body = strings.Trim(out, "\n")
		}
	} else {
		body = lipgloss.NewStyle().Width(m.contentWidth()).Render(body)
	}
	return m.theme.AILabel.Render(msg.Role.DisplayName()) + "\n" + body
}

func (m Model) renderEmptyState() string {
	lines := []string{
		m.theme.Muted.Render("Start typing to begin a new chat."),
		"",
		m.theme.Muted.Render("Tab moves to the chat list. Ctrl+T switches between lite and pro."),
	}
	return strings.Join(lines, "\n")
}

func (m Model) contentWidth() int {
	if w := m.viewport.Width - 2; w > 10 {
		return w
	}
	return 10
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	sep := m.theme.Separator.Render(strings.Repeat("─", m.viewport.Width))
	return sep + "\n" + m.input.View()
}

func (m Model) renderStatusBar() string {
	left := m.renderModelStatus()
	if m.confirm != nil {
		left += "  " + m.theme.Warning.Render(m.confirm.question+" (y/n)")
	} else if m.notice != "" {
		style := m.theme.Muted
		if m.noticeErr {
			style = m.theme.Error
		}
		left += "  " + style.Render(m.notice)
	}

	bindings := m.keys.ShortHelp()
	switch {
	case m.confirm != nil:
		bindings = m.keys.ConfirmHelp()
	case m.focus == focusSidebar:
		bindings = m.keys.SidebarHelp()
	}
	right := m.theme.Muted.Render(helpLine(bindings))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

func (m Model) activeSession() (model.ChatSession, bool) {
	for _, s := range m.state.Sessions {
		if s.ID == m.state.ActiveID {
			return s, true
		}
	}
	return model.ChatSession{}, false
}
