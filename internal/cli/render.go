// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Markdown rendering for replies and exported sessions.

package cli

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders Markdown for the terminal. TermRenderer is not
// safe for concurrent use, so calls are serialized.
type markdownRenderer struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
}

// newMarkdownRenderer returns a renderer wrapping at width. When colors are
// off, or the renderer cannot be built, output is returned unchanged.
func newMarkdownRenderer(width int) *markdownRenderer {
	if !ColorsEnabled() {
		return &markdownRenderer{}
	}
	if width > 120 {
		width = 120
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-4),
		glamour.WithEmoji(),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

// Render returns text rendered as Markdown, or text itself on failure.
func (m *markdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
