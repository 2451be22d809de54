// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/engine/enginetest"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/storage"
)

// =============================================================================
// FIXTURES
// =============================================================================

type fakePinger struct{ err error }

func (p fakePinger) CheckRunning(context.Context) error { return p.err }

// newTestServer wires a server over a real app with an in-memory engine.
// When ready is true the default model is loaded before returning.
func newTestServer(t *testing.T, ready bool, opts Options) (*Server, *app.App, *enginetest.Backend) {
	t.Helper()

	kv, err := storage.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	backend := enginetest.NewBackend(nil)
	a := app.New(app.Deps{Backend: backend, Catalog: model.DefaultCatalog(), KV: kv})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})

	if ready {
		if err := a.OnStart(context.Background()); err != nil {
			t.Fatalf("OnStart: %v", err)
		}
		waitFor(t, func() bool { return a.State().Model.IsLoaded })
	}

	s := NewServer(a, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, a, backend
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t, true, Options{Backend: fakePinger{}})

	w := do(s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Version != Version {
		t.Errorf("Version = %q, want %q", resp.Version, Version)
	}
	if resp.Status != "ok" || resp.Backend != "ok" || !resp.Loaded {
		t.Errorf("unexpected health: %+v", resp)
	}
	if resp.Model != model.DefaultLiteModel {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestHandleHealth_BackendDown(t *testing.T) {
	s, _, _ := newTestServer(t, false, Options{Backend: fakePinger{err: errors.New("refused")}})

	var resp HealthResponse
	decodeBody(t, do(s, "GET", "/health", ""), &resp)
	if resp.Status != "degraded" || resp.Backend != "unreachable" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHandleState(t *testing.T) {
	s, _, _ := newTestServer(t, true, Options{})

	w := do(s, "GET", "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}

	var st app.State
	decodeBody(t, w, &st)
	if len(st.Sessions) != 1 || st.ActiveID != st.Sessions[0].ID {
		t.Errorf("expected one active session, got %+v", st)
	}
	if st.IsBusy || !st.Model.IsLoaded {
		t.Errorf("unexpected flags: %+v", st)
	}
}

func TestHandleModels(t *testing.T) {
	s, _, _ := newTestServer(t, true, Options{})

	var resp ModelsResponse
	decodeBody(t, do(s, "GET", "/api/models", ""), &resp)

	if len(resp.Models) != 2 {
		t.Fatalf("len(Models) = %d, want 2", len(resp.Models))
	}
	if resp.Models[0].Tier != model.TierLite || !resp.Models[0].Current {
		t.Errorf("lite entry = %+v", resp.Models[0])
	}
	if resp.Models[1].Tier != model.TierPro || resp.Models[1].Current {
		t.Errorf("pro entry = %+v", resp.Models[1])
	}
}

func TestHandleLoadModel(t *testing.T) {
	s, a, backend := newTestServer(t, true, Options{})

	w := do(s, "POST", "/api/models/load", `{"model": "pro"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusAccepted)
	}
	waitFor(t, func() bool {
		st := a.State().Model
		return st.IsLoaded && st.CurrentModelID == model.DefaultProModel
	})
	if backend.Reloads() != 1 {
		t.Errorf("Reloads = %d, want 1", backend.Reloads())
	}

	if w := do(s, "POST", "/api/models/load", `{"model": " "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank model: Status = %d, want 400", w.Code)
	}
	if w := do(s, "POST", "/api/models/load", `{bad`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: Status = %d, want 400", w.Code)
	}
}

func TestHandleSessions(t *testing.T) {
	s, a, _ := newTestServer(t, true, Options{})

	if _, err := a.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	a.WaitIdle()
	first := a.State().ActiveID

	w := do(s, "POST", "/api/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: Status = %d", w.Code)
	}
	var created CreateSessionResponse
	decodeBody(t, w, &created)
	if created.ID == "" || created.ID == first {
		t.Fatalf("unexpected id %q", created.ID)
	}

	if w := do(s, "POST", "/api/sessions/"+first+"/pin", ""); w.Code != http.StatusOK {
		t.Fatalf("pin: Status = %d", w.Code)
	}
	if sess, _ := a.Session(first); !sess.IsPinned {
		t.Error("session should be pinned")
	}

	w = do(s, "POST", "/api/sessions/"+first+"/activate", "")
	var st app.State
	decodeBody(t, w, &st)
	if st.ActiveID != first || len(st.Messages) != 2 {
		t.Errorf("activate: active=%q messages=%d", st.ActiveID, len(st.Messages))
	}

	w = do(s, "GET", "/api/sessions/"+first, "")
	var sess model.ChatSession
	decodeBody(t, w, &sess)
	if sess.ID != first || len(sess.Messages) != 2 {
		t.Errorf("get: %+v", sess)
	}

	if w := do(s, "DELETE", "/api/sessions/"+first, ""); w.Code != http.StatusOK {
		t.Fatalf("delete: Status = %d", w.Code)
	}
	if _, ok := a.Session(first); ok {
		t.Error("session should be gone")
	}

	for _, tc := range []struct{ method, path string }{
		{"DELETE", "/api/sessions/missing"},
		{"POST", "/api/sessions/missing/pin"},
		{"GET", "/api/sessions/missing"},
	} {
		if w := do(s, tc.method, tc.path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: Status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestHandleSend(t *testing.T) {
	s, _, backend := newTestServer(t, true, Options{})
	backend.Engine.SetRespond(enginetest.Reply(engine.Success{Content: "Recursion is..."}))

	w := do(s, "POST", "/api/send", `{"text": "Explain recursion"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body=%s", w.Code, w.Body.String())
	}

	var resp SendResponse
	decodeBody(t, w, &resp)
	if resp.Reply.Role != model.RoleAssistant || resp.Reply.Content != "Recursion is..." {
		t.Errorf("Reply = %+v", resp.Reply)
	}
	if len(resp.State.Messages) != 2 || resp.State.IsBusy {
		t.Errorf("State = %+v", resp.State)
	}
}

func TestHandleSend_ClientDisconnectKeepsReply(t *testing.T) {
	s, a, backend := newTestServer(t, true, Options{})
	entered := backend.Engine.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/api/send", strings.NewReader(`{"text": "still there?"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handler().ServeHTTP(w, req)
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("completion never started")
	}
	cancel()
	backend.Engine.Release()
	<-done

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body=%s", w.Code, w.Body.String())
	}
	msgs := a.State().Messages
	if len(msgs) != 2 || msgs[1].Role != model.RoleAssistant || msgs[1].Content != "ok" {
		t.Errorf("Messages = %+v", msgs)
	}
}

func TestHandleSend_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s, _, _ := newTestServer(t, true, Options{})
		if w := do(s, "POST", "/api/send", `{"text": "  "}`); w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		s, _, _ := newTestServer(t, false, Options{})
		if w := do(s, "POST", "/api/send", `{"text": "hi"}`); w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want 503", w.Code)
		}
	})

	t.Run("inference failure", func(t *testing.T) {
		s, a, backend := newTestServer(t, true, Options{})
		backend.Engine.SetRespond(enginetest.Reply(engine.Fail(errors.New("gpu on fire"))))

		w := do(s, "POST", "/api/send", `{"text": "hi"}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("Status = %d, want 502", w.Code)
		}
		if strings.Contains(w.Body.String(), "gpu on fire") {
			t.Error("internal cause leaked to client")
		}
		if msgs := a.State().Messages; len(msgs) != 1 {
			t.Errorf("user message should be kept, got %d messages", len(msgs))
		}
	})

	t.Run("busy", func(t *testing.T) {
		s, _, backend := newTestServer(t, true, Options{})
		entered := backend.Engine.Hold()

		first := make(chan int, 1)
		go func() {
			first <- do(s, "POST", "/api/send", `{"text": "slow"}`).Code
		}()
		<-entered

		if w := do(s, "POST", "/api/send", `{"text": "again"}`); w.Code != http.StatusConflict {
			t.Errorf("Status = %d, want 409", w.Code)
		}
		backend.Engine.Release()
		if code := <-first; code != http.StatusOK {
			t.Errorf("first send Status = %d", code)
		}
	})

	t.Run("too long", func(t *testing.T) {
		s, _, _ := newTestServer(t, true, Options{})
		body, _ := json.Marshal(SendRequest{Text: strings.Repeat("a", MaxMessageLength+1)})
		if w := do(s, "POST", "/api/send", string(body)); w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
	})
}

func TestHandleStats(t *testing.T) {
	s, _, _ := newTestServer(t, true, Options{})

	do(s, "POST", "/api/send", `{"text": "hi"}`)
	do(s, "POST", "/api/send", `{"text": ""}`)

	var resp ServerStats
	decodeBody(t, do(s, "GET", "/stats", ""), &resp)
	if resp.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", resp.TotalRequests)
	}
	if resp.Sends != 1 || resp.Rejections != 1 {
		t.Errorf("Sends = %d, Rejections = %d", resp.Sends, resp.Rejections)
	}
}

func TestHandleEvents(t *testing.T) {
	s, a, _ := newTestServer(t, true, Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := make(chan app.State, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var st app.State
				if json.Unmarshal([]byte(data), &st) == nil {
					select {
					case events <- st:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	initial := <-events
	if len(initial.Sessions) != 1 {
		t.Fatalf("initial state has %d sessions", len(initial.Sessions))
	}

	a.TogglePin(initial.ActiveID)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-events:
			if len(st.Sessions) == 1 && st.Sessions[0].IsPinned {
				cancel()
				return
			}
		case <-timeout:
			t.Fatal("no event for pin change")
		}
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third immediate request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients have their own bucket")
	}
	rl.Stop()
}

func TestRateLimiter_EvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.Allow("1.2.3.4")
	rl.evictIdle(time.Now().Add(2*bucketIdle), bucketIdle)

	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("buckets = %d after eviction, want 0", n)
	}
	if !rl.Allow("1.2.3.4") {
		t.Error("an evicted client starts with a full bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s, _, _ := newTestServer(t, true, Options{RateLimit: 0.001, RateBurst: 1})

	if w := do(s, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("first request: Status = %d", w.Code)
	}
	w := do(s, "GET", "/health", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: Status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestCORSMiddleware(t *testing.T) {
	s, _, _ := newTestServer(t, false, Options{AllowedOrigins: []string{"http://app.local", "*.example.com"}})

	tests := []struct {
		origin string
		allow  bool
	}{
		{"http://app.local", true},
		{"https://chat.example.com", true},
		{"http://evil.test", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("OPTIONS", "/api/send", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("%s: Status = %d, want 204", tt.origin, w.Code)
		}
		got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allow {
			t.Errorf("%s: allowed = %v, want %v", tt.origin, got, tt.allow)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _, _ := newTestServer(t, false, Options{})
	w := do(s, "GET", "/api/state", "")

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", w.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted forwarder ignored", "203.0.113.9:5000", "1.1.1.1", "", "203.0.113.9"},
		{"trusted proxy xff", "127.0.0.1:5000", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy real ip", "10.0.0.2:5000", "", "198.51.100.8", "198.51.100.8"},
		{"invalid header", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
		{"no port", "192.0.2.1", "", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
