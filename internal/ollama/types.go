// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"strconv"
	"time"
)

// Message is one turn of a chat request or response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewSystemMessage(content string) Message { return Message{Role: "system", Content: content} }
func NewUserMessage(content string) Message   { return Message{Role: "user", Content: content} }

// Options are the sampling parameters brainchat sets. Zero values are left
// to the model's defaults.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatRequest is the body of POST /api/chat. Stream is always sent so the
// server does not default to streaming.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	Options   *Options  `json:"options,omitempty"`
	KeepAlive string    `json:"keep_alive,omitempty"`
}

// ChatResponse is the non-streamed answer to a ChatRequest. Durations are
// in nanoseconds.
type ChatResponse struct {
	Model        string  `json:"model"`
	Message      Message `json:"message"`
	Done         bool    `json:"done"`
	EvalCount    int     `json:"eval_count,omitempty"`
	EvalDuration int64   `json:"eval_duration,omitempty"`
}

// TokensPerSecond is the generation rate, or 0 when the server sent no
// timing.
func (r *ChatResponse) TokensPerSecond() float64 {
	if r.EvalDuration <= 0 {
		return 0
	}
	return float64(r.EvalCount) / time.Duration(r.EvalDuration).Seconds()
}

// GenerateRequest is the body of POST /api/generate. brainchat never sends
// a prompt, so the call only changes whether the model is resident.
// KeepAlive is a duration string, or 0 to unload.
type GenerateRequest struct {
	Model     string `json:"model"`
	Stream    bool   `json:"stream"`
	KeepAlive any    `json:"keep_alive,omitempty"`
}

type GenerateResponse struct {
	Model string `json:"model"`
	Done  bool   `json:"done"`
}

// PullRequest is the body of POST /api/pull.
type PullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// PullProgress is one NDJSON line of a pull. Error is set on the line that
// ends a failed pull.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent is the download progress in 0..100, or -1 for lines without byte
// counts such as "pulling manifest".
func (p PullProgress) Percent() int {
	if p.Total <= 0 {
		return -1
	}
	return int(min(p.Completed*100/p.Total, 100))
}

// Text is the line as shown in the status bar, e.g. "pulling 3f8e 42%".
func (p PullProgress) Text() string {
	status := p.Status
	if status == "" {
		status = "working"
	}
	if pct := p.Percent(); pct >= 0 {
		status += " " + strconv.Itoa(pct) + "%"
	}
	return status
}

// ModelInfo is one entry of GET /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError is the body of a failed request.
type OllamaError struct {
	Error string `json:"error"`
}
