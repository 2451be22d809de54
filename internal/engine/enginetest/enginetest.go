// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enginetest provides in-memory engine.Backend and engine.Engine
// implementations for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/jeranaias/brainchat/internal/engine"
)

// =============================================================================
// ENGINE
// =============================================================================

// RespondFunc computes a reply for a completion.
type RespondFunc func(turns []engine.Turn, opts engine.Options) engine.Reply

// Call records one completion request.
type Call struct {
	Model string
	Turns []engine.Turn
	Opts  engine.Options
}

// Engine is a scripted engine. The zero value answers every request with
// Success{"ok"}.
type Engine struct {
	mu      sync.Mutex
	model   string
	respond RespondFunc
	calls   []Call
	gate    chan struct{}
	entered chan struct{}
}

// NewEngine creates an engine that answers with respond.
func NewEngine(respond RespondFunc) *Engine {
	return &Engine{respond: respond}
}

// Reply answers every request with a fixed reply.
func Reply(r engine.Reply) RespondFunc {
	return func([]engine.Turn, engine.Options) engine.Reply { return r }
}

// Model implements engine.Engine.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// SetRespond swaps the reply function.
func (e *Engine) SetRespond(respond RespondFunc) {
	e.mu.Lock()
	e.respond = respond
	e.mu.Unlock()
}

// Hold makes subsequent completions block until Release is called. The
// returned channel receives once each time a completion starts waiting.
func (e *Engine) Hold() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = make(chan struct{})
	e.entered = make(chan struct{}, 16)
	return e.entered
}

// Release unblocks held completions.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gate != nil {
		close(e.gate)
		e.gate = nil
	}
}

// Complete implements engine.Engine.
func (e *Engine) Complete(ctx context.Context, turns []engine.Turn, opts engine.Options) engine.Reply {
	e.mu.Lock()
	cp := make([]engine.Turn, len(turns))
	copy(cp, turns)
	e.calls = append(e.calls, Call{Model: e.model, Turns: cp, Opts: opts})
	gate, entered, respond := e.gate, e.entered, e.respond
	e.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return engine.Fail(ctx.Err())
		}
	}

	if respond == nil {
		return engine.Success{Content: "ok"}
	}
	return respond(cp, opts)
}

// Calls returns the recorded completion requests.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend hands out a single Engine and counts creates and reloads.
type Backend struct {
	Engine *Engine

	mu       sync.Mutex
	creates  int
	reloads  int
	loads    []string
	err      error
	progress []string
	gate     chan struct{}
	entered  chan struct{}
}

// NewBackend creates a backend whose engine answers with respond.
func NewBackend(respond RespondFunc) *Backend {
	return &Backend{Engine: NewEngine(respond)}
}

// FailNext makes loads fail with err until cleared with FailNext(nil).
func (b *Backend) FailNext(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// SetProgress sets the report texts emitted during each load.
func (b *Backend) SetProgress(texts ...string) {
	b.mu.Lock()
	b.progress = texts
	b.mu.Unlock()
}

// Hold makes subsequent loads block after emitting progress until Release.
func (b *Backend) Hold() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 16)
	return b.entered
}

// Release unblocks held loads.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
}

// CreateOrReload implements engine.Backend.
func (b *Backend) CreateOrReload(ctx context.Context, existing engine.Engine, modelID string, progress engine.ProgressFunc) (engine.Engine, error) {
	b.mu.Lock()
	if existing == nil {
		b.creates++
	} else {
		b.reloads++
	}
	b.loads = append(b.loads, modelID)
	texts, gate, entered := b.progress, b.gate, b.entered
	b.mu.Unlock()

	for _, t := range texts {
		if progress != nil {
			progress(engine.Report{Text: t})
		}
	}

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	b.Engine.mu.Lock()
	b.Engine.model = modelID
	b.Engine.mu.Unlock()
	return b.Engine, nil
}

// Creates returns how many loads had no existing engine.
func (b *Backend) Creates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates
}

// Reloads returns how many loads reused an existing engine.
func (b *Backend) Reloads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reloads
}

// Loads returns the model ids requested, in order.
func (b *Backend) Loads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.loads))
	copy(out, b.loads)
	return out
}
