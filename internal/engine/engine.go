// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between brainchat and an inference
// backend, plus the Ollama implementation of it.
//
// A Backend creates or reloads the single Engine handle. An Engine answers one
// completion at a time with a Reply, which is either a Success or a Failure.
package engine

import (
	"context"

	"github.com/jeranaias/brainchat/internal/model"
)

// Turn is one entry of a completion payload.
type Turn struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

// Options tunes a single completion. The zero value uses backend defaults.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// =============================================================================
// REPLY
// =============================================================================

// Reply is the outcome of a completion: Success or Failure.
type Reply interface {
	isReply()
}

// Success carries the generated text. Missing content is the empty string.
type Success struct {
	Content string
}

// Failure reports that the backend rejected or failed the request.
type Failure struct {
	Reason string
	Err    error
}

func (Success) isReply() {}
func (Failure) isReply() {}

func (f Failure) Error() string {
	if f.Err != nil && f.Reason == "" {
		return f.Err.Error()
	}
	return f.Reason
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Fail builds a Failure from an error.
func Fail(err error) Failure {
	return Failure{Reason: err.Error(), Err: err}
}

// =============================================================================
// BACKEND CONTRACT
// =============================================================================

// Report is a load progress event. Text may embed a percentage such as "42%".
type Report struct {
	Text string
}

// ProgressFunc receives load progress. It may be called from any goroutine.
type ProgressFunc func(Report)

// Engine is a loaded model ready to answer completions.
type Engine interface {
	// Model returns the backend id of the loaded model.
	Model() string

	// Complete runs one completion. Transport errors are returned as Failure.
	Complete(ctx context.Context, turns []Turn, opts Options) Reply
}

// Backend creates the engine on first load and reloads it in place after.
type Backend interface {
	// CreateOrReload loads modelID. existing is nil on the first load;
	// afterwards it is the handle returned by the previous call.
	CreateOrReload(ctx context.Context, existing Engine, modelID string, progress ProgressFunc) (Engine, error)
}
