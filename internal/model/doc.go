// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// This package defines the core domain types used throughout brainchat for
// representing conversation threads and the catalog of loadable models.
//
// # Key Types
//
//   - ChatSession: A conversation thread with ordered messages and a pin flag
//   - Message: Single immutable message with role, content and timestamp
//   - Catalog: The named model tiers (lite, pro) and their backend identifiers
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a new session and add the first user message:
//
//	s := model.NewChatSession()
//	s.Messages = append(s.Messages, model.NewUserMessage("Hello!"))
//
// Resolve a tier name to a backend model:
//
//	info := model.DefaultCatalog().Resolve("pro")
//	fmt.Println(info.ID, info.Label)
package model
