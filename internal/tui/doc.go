// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the full-screen chat front end.
//
// The screen has a chat list on the left (pinned chats first), the active
// chat's messages on the right, an input line and a status bar showing
// model load progress. It never holds state of its own beyond what is on
// screen: every change goes through the core and the screen redraws when the
// core announces a change.
//
// Keys:
//
//	Enter    send (or open the selected chat in the list)
//	Tab      move between the input and the chat list
//	Ctrl+N   new chat
//	Ctrl+T   switch between the lite and pro models
//	Esc      cancel the reply being generated
//	p, d, n  pin, delete or create a chat while the list has focus
//	Ctrl+C   quit
package tui
