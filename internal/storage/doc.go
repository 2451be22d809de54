// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the session collection under a single key.
//
// The collection is stored as one JSON array of session records. Only
// sessions with at least one message are written. Three key-value backends
// are available: a JSON file per key (default), a bbolt database, and a
// SQLite database.
//
// # Key Types
//
//   - KV: Minimal key-value contract implemented by each backend
//   - Adapter: Loads and saves the session collection through a KV
//   - Writer: Background writer that coalesces saves to the latest snapshot
//   - ParseError: Stored data could not be decoded
//
// # Usage
//
//	kv, err := storage.Open(storage.DriverFile, dataDir)
//	adapter := storage.NewAdapter(kv, storage.DefaultKey, logger)
//	sessions, found, err := adapter.Load(ctx)
//
//	w := storage.NewWriter(adapter, logger)
//	w.Submit(snapshot.Sessions)
//	defer w.Close()
//
// # Storage Location
//
// Data lives in ~/.brainchat/data/ unless configured otherwise.
package storage
