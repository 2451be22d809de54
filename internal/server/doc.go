// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat core over HTTP for a browser front end.
//
// # Endpoints
//
//   - GET    /health                     - Health check (model and backend)
//   - GET    /stats                      - Request counters
//   - GET    /api/state                  - Full presentation state
//   - GET    /api/events                 - Server-Sent Events stream of state
//   - GET    /api/models                 - Model catalog
//   - POST   /api/models/load            - Start loading a model (202)
//   - POST   /api/sessions               - Create a session
//   - GET    /api/sessions/{id}          - Read one session
//   - DELETE /api/sessions/{id}          - Delete a session
//   - POST   /api/sessions/{id}/pin      - Toggle the pin flag
//   - POST   /api/sessions/{id}/activate - Select a session
//   - POST   /api/send                   - Send a message to the active session
//
// Send maps rejections to status codes: 400 for an empty message, 409 while
// a reply is being generated, 503 when no model is loaded and 502 when the
// model fails.
//
// # Middleware
//
//   - Panic recovery
//   - Security headers (X-Content-Type-Options, X-Frame-Options, etc.)
//   - Request logging
//   - CORS for configured origins
//   - Per-client rate limiting
//
// # Usage
//
//	srv := server.NewServer(core, server.Options{Addr: ":8484", Logger: logger})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
