// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package title derives session titles from the first user message.
//
// Instant titles are a deterministic truncation applied right away. Smart
// titles ask the loaded model for a short summary and fall back to the
// instant title on any failure.
package title

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/util"
)

const (
	// InstantLength is the number of characters kept by Instant.
	InstantLength = 40

	// Instruction is the system prompt for smart titles.
	Instruction = "Summarize this into a 3-5 word title, no quotes"

	// MaxTokens caps the smart title completion.
	MaxTokens = 15
)

// ErrBlankTitle is returned when the model answers with nothing usable.
var ErrBlankTitle = errors.New("model returned a blank title")

// Completer runs one completion. lifecycle.Manager satisfies it.
type Completer interface {
	Complete(ctx context.Context, turns []engine.Turn, opts engine.Options) engine.Reply
}

// Instant returns the first 40 characters of text, with "..." appended when
// text is longer.
func Instant(text string) string {
	return util.TruncateWithMarker(text, InstantLength, "...")
}

// Summarize asks c for a 3-5 word title for text.
func Summarize(ctx context.Context, c Completer, text string) (string, error) {
	reply := c.Complete(ctx, []engine.Turn{
		{Role: model.RoleSystem, Content: Instruction},
		{Role: model.RoleUser, Content: text},
	}, engine.Options{MaxTokens: MaxTokens})

	switch r := reply.(type) {
	case engine.Success:
		t := clean(r.Content)
		if t == "" {
			return "", ErrBlankTitle
		}
		return t, nil
	case engine.Failure:
		return "", r
	default:
		return "", errors.New("unexpected reply type")
	}
}

// Generator produces smart titles with logging of fallbacks.
type Generator struct {
	completer Completer
	logger    *zap.Logger
}

// NewGenerator creates a generator. A nil completer always falls back.
func NewGenerator(c Completer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{completer: c, logger: logger}
}

// Generate returns a smart title for text, or Instant(text) if the model
// cannot provide one.
func (g *Generator) Generate(ctx context.Context, text string) string {
	if g == nil || g.completer == nil {
		return Instant(text)
	}
	t, err := Summarize(ctx, g.completer, text)
	if err != nil {
		g.logger.Debug("TITLE_FALLBACK", zap.Error(err))
		return Instant(text)
	}
	return t
}

// clean trims whitespace and wrapping quotes, and keeps only the first line.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, " \t\"'`“”‘’")
	return strings.TrimSpace(s)
}
