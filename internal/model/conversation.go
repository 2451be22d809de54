// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTitle is the title of a session before its first message.
const DefaultTitle = "New Chat"

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession is one conversation thread. Messages are append-only and kept
// in chronological order.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	IsPinned  bool      `json:"isPinned"`
}

// NewChatSession creates an empty, unpinned session with a generated ID.
func NewChatSession() *ChatSession {
	return &ChatSession{
		ID:        NewID(),
		Title:     DefaultTitle,
		Messages:  make([]Message, 0),
		CreatedAt: time.Now(),
	}
}

// IsEmpty returns true if the session has no messages.
func (s *ChatSession) IsEmpty() bool {
	return len(s.Messages) == 0
}

// MessageCount returns the number of messages.
func (s *ChatSession) MessageCount() int {
	return len(s.Messages)
}

// LastMessage returns the most recent message, if any.
func (s *ChatSession) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy. Messages are values so copying the slice is enough.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the session as a Markdown document.
func (s *ChatSession) ExportMarkdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", s.Title))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", s.CreatedAt.Format("2006-01-02 15:04:05")))
	if s.IsPinned {
		sb.WriteString("**Pinned:** yes\n")
	}
	sb.WriteString(fmt.Sprintf("**Messages:** %d\n\n", len(s.Messages)))
	sb.WriteString("---\n\n")

	for _, msg := range s.Messages {
		sb.WriteString(fmt.Sprintf("### %s\n\n", msg.Role.DisplayName()))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
