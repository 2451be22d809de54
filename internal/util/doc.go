// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the text and file helpers more than one package needs.
//
// The text helpers measure in runes or terminal columns, never bytes, so
// titles and table cells never split a multi-byte character. WriteAtomic and
// AtomicWriteFile replace a file through a synced temp file and a rename;
// both the config and the file storage driver write this way.
package util
