// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/util"
)

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions as a numbered table. Numbers are
// 1-based positions in collection order and are what the CLI accepts.
func FormatSessionList(sessions []model.ChatSession) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("-------------------------------------------------------------------\n")
	sb.WriteString(util.PadWidth("#", 4) + " " + util.PadWidth("Created", 17) + " " +
		util.PadWidth("Msgs", 5) + " " + util.PadWidth("Pin", 4) + " Title\n")
	sb.WriteString("-------------------------------------------------------------------\n")

	for i, s := range sessions {
		pin := ""
		if s.IsPinned {
			pin = "*"
		}
		sb.WriteString(util.PadWidth(strconv.Itoa(i+1), 4) + " " +
			util.PadWidth(s.CreatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadWidth(strconv.Itoa(len(s.Messages)), 5) + " " +
			util.PadWidth(pin, 4) + " " +
			util.TruncateWidth(util.SingleLine(s.Title), 36) + "\n")
	}
	return sb.String()
}

// Preview returns the first user message truncated for display.
func Preview(s model.ChatSession, width int) string {
	for _, m := range s.Messages {
		if m.IsUser() && m.Content != "" {
			return util.TruncateWidth(util.SingleLine(m.Content), width)
		}
	}
	return ""
}
