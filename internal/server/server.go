// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/chat"
	"github.com/jeranaias/brainchat/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8484"

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageLength caps a single chat message in runes.
	MaxMessageLength = 100000

	// heartbeatInterval keeps idle event streams open through proxies.
	heartbeatInterval = 15 * time.Second
)

// Version is reported by /health. main sets it from build flags.
var Version = "dev"

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Core is the part of the app facade the server drives. *app.App satisfies it.
type Core interface {
	State() app.State
	Catalog() model.Catalog
	Session(id string) (model.ChatSession, bool)
	Subscribe() (<-chan struct{}, func())

	StartLoad(nameOrID string) error
	CreateSession() string
	DeleteSession(id string)
	TogglePin(id string)
	SetActive(id string)
	Send(ctx context.Context, text string) (model.Message, error)
}

// Pinger reports whether the inference backend is reachable.
// *ollama.Client satisfies it.
type Pinger interface {
	CheckRunning(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	Addr           string
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	// Backend is pinged by /health when set.
	Backend Pinger
	Logger  *zap.Logger
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks API usage.
type ServerStats struct {
	TotalRequests int64     `json:"total_requests"`
	Sends         int64     `json:"sends"`
	SendFailures  int64     `json:"send_failures"`
	Rejections    int64     `json:"rejections"`
	StartTime     time.Time `json:"start_time"`
}

type stats struct {
	requests   atomic.Int64
	sends      atomic.Int64
	failures   atomic.Int64
	rejections atomic.Int64
	start      time.Time
}

func (s *stats) snapshot() ServerStats {
	return ServerStats{
		TotalRequests: s.requests.Load(),
		Sends:         s.sends.Load(),
		SendFailures:  s.failures.Load(),
		Rejections:    s.rejections.Load(),
		StartTime:     s.start,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the chat core as a JSON API with a Server-Sent Events feed.
type Server struct {
	core    Core
	opts    Options
	logger  *zap.Logger
	router  *http.ServeMux
	handler http.Handler
	limiter *RateLimiter
	stats   *stats

	mu     sync.Mutex
	server *http.Server

	// streams is closed on Shutdown so event handlers return.
	streams     chan struct{}
	streamsOnce sync.Once
}

// NewServer builds a server over core. Nothing listens until Start.
func NewServer(core Core, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		core:    core,
		opts:    opts,
		logger:  opts.Logger,
		router:  http.NewServeMux(),
		stats:   &stats{start: time.Now()},
		streams: make(chan struct{}),
	}
	s.setupRoutes()

	middlewares := []Middleware{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(opts.AllowedOrigins),
	}
	if opts.RateLimit > 0 {
		s.limiter = NewRateLimiter(opts.RateLimit, opts.RateBurst)
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.logger))
	}
	s.handler = Chain(middlewares...)(s.countRequests(s.router))
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)

	s.router.HandleFunc("GET /api/state", s.handleState)
	s.router.HandleFunc("GET /api/events", s.handleEvents)

	s.router.HandleFunc("GET /api/models", s.handleModels)
	s.router.HandleFunc("POST /api/models/load", s.handleLoadModel)

	s.router.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("POST /api/sessions/{id}/pin", s.handleTogglePin)
	s.router.HandleFunc("POST /api/sessions/{id}/activate", s.handleActivate)

	s.router.HandleFunc("POST /api/send", s.handleSend)
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// LoadModelRequest is the body of POST /api/models/load.
type LoadModelRequest struct {
	Model string `json:"model"`
}

// SendRequest is the body of POST /api/send.
type SendRequest struct {
	Text string `json:"text"`
}

// SendResponse is returned by a successful send.
type SendResponse struct {
	Reply model.Message `json:"reply"`
	State app.State     `json:"state"`
}

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	ID string `json:"id"`
}

// ModelEntry describes one catalog model.
type ModelEntry struct {
	Tier    model.Tier `json:"tier,omitempty"`
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Current bool       `json:"current"`
}

// ModelsResponse is returned by GET /api/models.
type ModelsResponse struct {
	Models []ModelEntry `json:"models"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model,omitempty"`
	Loaded  bool   `json:"loaded"`
	Backend string `json:"backend,omitempty"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.core.State().Model
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
		Model:   st.CurrentModelID,
		Loaded:  st.IsLoaded,
	}
	if s.opts.Backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Backend.CheckRunning(ctx); err != nil {
			resp.Status = "degraded"
			resp.Backend = "unreachable"
		} else {
			resp.Backend = "ok"
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.State())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	current := s.core.State().Model.CurrentModelID
	var resp ModelsResponse
	for _, m := range s.core.Catalog().Models() {
		resp.Models = append(resp.Models, ModelEntry{
			Tier:    m.Tier,
			ID:      m.ID,
			Label:   m.Label,
			Current: m.ID == current,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req LoadModelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}
	if err := s.core.StartLoad(req.Model); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.core.State())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.core.CreateSession()
	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{ID: id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.core.Session(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.core.Session(id); !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	s.core.DeleteSession(id)
	s.writeJSON(w, http.StatusOK, s.core.State())
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.core.Session(id); !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	s.core.TogglePin(id)
	s.writeJSON(w, http.StatusOK, s.core.State())
}

// handleActivate mirrors the core: the id is not validated.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.core.SetActive(r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, s.core.State())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len([]rune(req.Text)) > MaxMessageLength {
		s.writeError(w, http.StatusBadRequest, "invalid_request_error",
			fmt.Sprintf("message exceeds maximum length of %d", MaxMessageLength))
		return
	}

	// Completions can outlast the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// The reply is stored even if the client goes away mid-completion.
	reply, err := s.core.Send(context.WithoutCancel(r.Context()), req.Text)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	s.stats.sends.Add(1)
	s.writeJSON(w, http.StatusOK, SendResponse{Reply: reply, State: s.core.State()})
}

func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	var ierr *chat.InferenceError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		s.stats.rejections.Add(1)
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.Is(err, chat.ErrBusy):
		s.stats.rejections.Add(1)
		s.writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, chat.ErrModelNotReady), errors.Is(err, app.ErrClosed):
		s.stats.rejections.Add(1)
		s.writeError(w, http.StatusServiceUnavailable, "model_not_ready", err.Error())
	case errors.As(err, &ierr):
		s.stats.failures.Add(1)
		// Full cause stays in the log; the client gets a generic message
		s.logger.Warn("SEND_FAILED", zap.String("session", ierr.SessionID), zap.Error(ierr.Cause))
		s.writeError(w, http.StatusBadGateway, "inference_error", "the model failed to produce a reply")
	default:
		s.stats.failures.Add(1)
		s.logger.Error("SEND_FAILED", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// handleEvents streams a "state" event with the full State on connect and on
// every change, until the client leaves or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	updates, cancel := s.core.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := s.writeEvent(w, rc); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.streams:
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeEvent(w, rc); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, rc *http.ResponseController) error {
	data, err := json.Marshal(s.core.State())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("SERVER_START", zap.String("addr", ln.Addr().String()), zap.String("version", Version))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends event streams, stops accepting requests and waits for
// in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("SERVER_SHUTDOWN")
	s.streamsOnce.Do(func() { close(s.streams) })
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into v, writing a 4xx response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error",
				fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return false
		}
		s.logger.Debug("INVALID_REQUEST_BODY", zap.String("path", r.URL.Path), zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request format")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("RESPONSE_WRITE_FAILED", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, errType, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}
