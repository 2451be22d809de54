// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the in-memory collection of chat sessions and the
// active session pointer.
//
// All mutations are applied under one mutex. Change listeners receive a deep
// copy of the collection and run after the lock is released, so they may
// call back into the Store.
//
// # Key Types
//
//   - Store: The ordered session collection, newest first
//   - Snapshot: An immutable copy of the collection and active id
//
// # Usage
//
//	store := session.NewStore()
//	store.OnChange(func(s session.Snapshot) { render(s) })
//	id := store.CreateSession()
//	store.AppendMessage(id, model.NewUserMessage("Hello"))
package session
