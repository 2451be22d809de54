// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the IPv4 loopback; "localhost" can resolve to ::1
	// where Ollama does not listen.
	DefaultBaseURL = "http://127.0.0.1:11434"

	defaultTimeout   = 30 * time.Second
	defaultKeepAlive = "30m"
)

// ClientConfig configures a Client. Zero fields take their defaults.
type ClientConfig struct {
	BaseURL string

	// Timeout bounds the quick calls (CheckRunning, ListModels). Pulls,
	// loads and chats can run for minutes and rely on the caller's context.
	Timeout time.Duration

	// KeepAlive is sent with Load and Chat so the model stays resident.
	KeepAlive string
}

// DefaultConfig returns a config pointing at the local server.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{BaseURL: DefaultBaseURL, Timeout: defaultTimeout, KeepAlive: defaultKeepAlive}
}

// Client talks to one Ollama server. It is safe for concurrent use.
type Client struct {
	baseURL   string
	keepAlive string

	quick *http.Client
	slow  *http.Client
}

// NewClient returns a client for DefaultBaseURL.
func NewClient() *Client {
	return NewClientWithConfig(nil)
}

// NewClientWithConfig returns a client for cfg. cfg may be nil.
func NewClientWithConfig(cfg *ClientConfig) *Client {
	c := &Client{baseURL: DefaultBaseURL, keepAlive: defaultKeepAlive}
	timeout := defaultTimeout
	if cfg != nil {
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.KeepAlive != "" {
			c.keepAlive = cfg.KeepAlive
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	// Plain HTTP: the server is local.
	c.quick = &http.Client{Timeout: timeout}
	c.slow = &http.Client{}
	return c
}

// BaseURL returns the server address requests go to.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckRunning succeeds when the server answers its root endpoint.
func (c *Client) CheckRunning(ctx context.Context) error {
	resp, err := c.send(ctx, c.quick, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// ListModels returns the models already present on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out ListModelsResponse
	if err := c.roundTrip(ctx, c.quick, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Pull fetches model and calls fn for every progress line. A model that is
// already present finishes with a single "success" line.
func (c *Client) Pull(ctx context.Context, model string, fn ProgressCallback) error {
	resp, err := c.send(ctx, c.slow, http.MethodPost, "/api/pull", PullRequest{Model: model, Stream: true})
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return NewStreamReader(resp.Body).Process(ctx, fn)
}

// Load makes the server hold model in memory for the configured keep-alive.
func (c *Client) Load(ctx context.Context, model string) error {
	return c.warm(ctx, model, c.keepAlive)
}

// Unload asks the server to drop model right away.
func (c *Client) Unload(ctx context.Context, model string) error {
	return c.warm(ctx, model, 0)
}

// warm posts a prompt-less generate request, which only changes residency.
func (c *Client) warm(ctx context.Context, model string, keepAlive any) error {
	req := GenerateRequest{Model: model, KeepAlive: keepAlive}
	var out GenerateResponse
	return c.roundTrip(ctx, c.slow, http.MethodPost, "/api/generate", req, &out)
}

// Chat runs one non-streaming completion. opts may be nil.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (*ChatResponse, error) {
	req := ChatRequest{
		Model:     model,
		Messages:  messages,
		Options:   opts,
		KeepAlive: c.keepAlive,
	}
	var out ChatResponse
	if err := c.roundTrip(ctx, c.slow, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// roundTrip sends payload and decodes the JSON answer into out.
func (c *Client) roundTrip(ctx context.Context, hc *http.Client, method, path string, payload, out any) error {
	resp, err := c.send(ctx, hc, method, path, payload)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return invalid("malformed "+path+" response", err)
	}
	return nil
}

// send issues the request. Any non-200 answer becomes a ClientError and the
// body is closed; otherwise the caller must close it.
func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, invalid("encode "+path+" request", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "build " + path + " request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound && path != "/" {
		return nil, ErrModelNotFound
	}
	var apiErr OllamaError
	if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
		return nil, invalid(apiErr.Error, nil)
	}
	return nil, invalid(method+" "+path+": "+resp.Status, nil)
}

// closeBody drains the body so the connection can be reused.
func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
