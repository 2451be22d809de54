// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jeranaias/brainchat/internal/util"
)

// FileKV stores each key as a JSON file in a directory.
type FileKV struct {
	// BaseDir holds one <key>.json file per key
	BaseDir string
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileKV{BaseDir: dir}, nil
}

// Get reads a key's file.
func (f *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.filePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrKeyNotFound
	}
	return data, err
}

// Put replaces a key's file atomically.
func (f *FileKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(f.filePath(key), value, 0o600)
}

// Close is a no-op.
func (f *FileKV) Close() error {
	return nil
}

// filePath escapes the key so it cannot leave BaseDir.
func (f *FileKV) filePath(key string) string {
	return filepath.Join(f.BaseDir, url.PathEscape(key)+".json")
}
