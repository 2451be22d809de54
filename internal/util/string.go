// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// TruncateWithMarker keeps the first keep runes of s and appends marker if
// anything was dropped. The marker does not count toward keep.
func TruncateWithMarker(s string, keep int, marker string) string {
	if keep <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == keep {
			return s[:i] + marker
		}
		n++
	}
	return s
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", " ", "\t", " ")

// SingleLine turns line breaks and tabs into spaces for one-row display.
func SingleLine(s string) string {
	return lineBreaks.Replace(s)
}

// TruncateWidth cuts s to at most maxWidth terminal columns, ending in "..."
// when there is room for it. Wide runes count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	switch {
	case maxWidth <= 0:
		return ""
	case runewidth.StringWidth(s) <= maxWidth:
		return s
	case maxWidth <= len(ellipsis):
		return runewidth.Truncate(s, maxWidth, "")
	default:
		return runewidth.Truncate(s, maxWidth, ellipsis)
	}
}

// PadWidth right-pads s with spaces to width columns. Longer strings are
// returned unchanged.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}
