// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/model"
)

// DefaultKey is the storage key holding the session collection.
const DefaultKey = "browser-brain-chats"

// Adapter loads and saves the session collection under one key.
type Adapter struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewAdapter creates an adapter. An empty key uses DefaultKey.
func NewAdapter(kv KV, key string, logger *zap.Logger) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{kv: kv, key: key, logger: logger}
}

// Key returns the storage key.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads the stored collection. found is false when nothing was ever
// saved. Undecodable data returns *ParseError.
func (a *Adapter) Load(ctx context.Context) (sessions []model.ChatSession, found bool, err error) {
	data, err := a.kv.Get(ctx, a.key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	sessions, err = Decode(data)
	if err != nil {
		perr := &ParseError{Key: a.key, Cause: err}
		a.logger.Warn("PERSISTENCE_PARSE_ERROR", zap.String("key", a.key), zap.Error(err))
		return nil, false, perr
	}
	return sessions, true, nil
}

// Save writes the sessions that have messages. It always writes, so saving
// an empty collection clears earlier data.
func (a *Adapter) Save(ctx context.Context, sessions []model.ChatSession) error {
	data, err := Encode(sessions)
	if err != nil {
		return err
	}
	return a.kv.Put(ctx, a.key, data)
}

// Close closes the underlying store.
func (a *Adapter) Close() error {
	return a.kv.Close()
}
