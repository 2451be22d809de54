// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem appears in prompts sent to a model. Sessions never store it.
	RoleSystem Role = "system"
)

var roleNames = map[Role]string{
	RoleUser:      "You",
	RoleAssistant: "Assistant",
	RoleSystem:    "System",
}

func (r Role) String() string { return string(r) }

// DisplayName is the label shown above a message.
func (r Role) DisplayName() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return string(r)
}

// Valid reports whether a session may hold a message with this role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn of a session. CreatedAt is serialized as
// createdAt to match the stored record layout.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewID returns a random UUID for a session or message.
func NewID() string {
	return uuid.NewString()
}

// NewMessage stamps content with a new id and the current time.
func NewMessage(role Role, content string) Message {
	return Message{ID: NewID(), Role: role, Content: content, CreatedAt: time.Now()}
}

func NewUserMessage(content string) Message      { return NewMessage(RoleUser, content) }
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

func (m Message) IsUser() bool      { return m.Role == RoleUser }
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }
