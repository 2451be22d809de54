// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/brainchat/internal/model"
)

// =============================================================================
// STORED RECORD TYPES
// =============================================================================

// StoredSession is the persisted shape of a session. Timestamps are Unix
// milliseconds.
type StoredSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []StoredMessage `json:"messages"`
	CreatedAt int64           `json:"createdAt"`
	IsPinned  bool            `json:"isPinned"`
}

// StoredMessage is the persisted shape of a message.
type StoredMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// Persistable returns the sessions that have at least one message, in order.
func Persistable(sessions []model.ChatSession) []model.ChatSession {
	out := make([]model.ChatSession, 0, len(sessions))
	for _, s := range sessions {
		if len(s.Messages) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Encode serializes sessions as a JSON array of records. Empty sessions are
// dropped.
func Encode(sessions []model.ChatSession) ([]byte, error) {
	keep := Persistable(sessions)
	records := make([]StoredSession, 0, len(keep))
	for _, s := range keep {
		records = append(records, toRecord(s))
	}
	return json.Marshal(records)
}

// Decode parses a JSON array of records. Missing pin flags decode as false
// and messages with a role other than user or assistant are skipped.
func Decode(data []byte) ([]model.ChatSession, error) {
	var records []StoredSession
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	out := make([]model.ChatSession, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

func toRecord(s model.ChatSession) StoredSession {
	msgs := make([]StoredMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, StoredMessage{
			ID:        m.ID,
			Role:      m.Role.String(),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UnixMilli(),
		})
	}
	return StoredSession{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  msgs,
		CreatedAt: s.CreatedAt.UnixMilli(),
		IsPinned:  s.IsPinned,
	}
}

func fromRecord(r StoredSession) model.ChatSession {
	msgs := make([]model.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if !model.Role(m.Role).Valid() {
			continue
		}
		msgs = append(msgs, model.Message{
			ID:        m.ID,
			Role:      model.Role(m.Role),
			Content:   m.Content,
			CreatedAt: time.UnixMilli(m.CreatedAt),
		})
	}
	return model.ChatSession{
		ID:        r.ID,
		Title:     r.Title,
		Messages:  msgs,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		IsPinned:  r.IsPinned,
	}
}
