// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// KV is a durable string-keyed byte store.
type KV interface {
	// Get returns ErrKeyNotFound when the key was never written.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Backend driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverFile, DriverBolt, DriverSQLite}
}

// Open creates the backend named by driver with its data under dir.
func Open(driver, dir string) (KV, error) {
	switch strings.ToLower(driver) {
	case DriverFile, "":
		return NewFileKV(dir)
	case DriverBolt:
		return OpenBolt(filepath.Join(dir, "brainchat.bolt"))
	case DriverSQLite:
		return OpenSQLite(filepath.Join(dir, "brainchat.db"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q (want one of %s)", driver, strings.Join(Drivers(), ", "))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by KV.Get for a key that was never written.
// Use errors.Is(err, ErrKeyNotFound) to check for this error.
var ErrKeyNotFound = &StorageError{Message: "key not found"}

// StorageError represents a storage-related error.
// It can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// ParseError reports stored data that could not be decoded. Callers recover
// by starting with a fresh session.
type ParseError struct {
	Key   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse stored sessions under %q: %v", e.Key, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
