// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/ollama"
)

// OllamaBackend loads models into a local Ollama server.
type OllamaBackend struct {
	client *ollama.Client
	logger *zap.Logger
}

// NewOllamaBackend wraps client. A nil logger disables logging.
func NewOllamaBackend(client *ollama.Client, logger *zap.Logger) *OllamaBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaBackend{client: client, logger: logger}
}

// CreateOrReload pulls and warms modelID. When existing is an engine from this
// backend the previous model is unloaded first and the same handle is reused.
func (b *OllamaBackend) CreateOrReload(ctx context.Context, existing Engine, modelID string, progress ProgressFunc) (Engine, error) {
	report := func(text string) {
		if progress != nil {
			progress(Report{Text: text})
		}
	}

	eng, reuse := existing.(*ollamaEngine)
	if reuse && eng != nil {
		if prev := eng.Model(); prev != "" && prev != modelID {
			if err := b.client.Unload(ctx, prev); err != nil {
				// A failed unload only costs memory on the server
				b.logger.Warn("MODEL_UNLOAD_FAILED", zap.String("model", prev), zap.Error(err))
			}
		}
	} else {
		eng = &ollamaEngine{client: b.client}
		reuse = false
	}

	report("Fetching " + modelID + " 0%")
	if err := b.client.Pull(ctx, modelID, func(p ollama.PullProgress) {
		report(p.Text())
	}); err != nil {
		return nil, fmt.Errorf("pull %s: %w", modelID, err)
	}

	report("Loading " + modelID + " into memory")
	if err := b.client.Load(ctx, modelID); err != nil {
		return nil, fmt.Errorf("load %s: %w", modelID, err)
	}

	eng.setModel(modelID)
	return eng, nil
}

// =============================================================================
// ENGINE
// =============================================================================

type ollamaEngine struct {
	client *ollama.Client

	mu    sync.RWMutex
	model string
}

func (e *ollamaEngine) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

func (e *ollamaEngine) setModel(id string) {
	e.mu.Lock()
	e.model = id
	e.mu.Unlock()
}

func (e *ollamaEngine) Complete(ctx context.Context, turns []Turn, opts Options) Reply {
	msgs := make([]ollama.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ollama.Message{Role: t.Role.String(), Content: t.Content})
	}

	var o *ollama.Options
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		o = &ollama.Options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature}
	}

	resp, err := e.client.Chat(ctx, e.Model(), msgs, o)
	if err != nil {
		return Fail(err)
	}
	return Success{Content: resp.Message.Content}
}
