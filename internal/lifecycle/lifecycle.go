// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle owns the single inference engine: which model is loaded,
// load progress, and readiness.
//
// Loads are serialized against completions. A reload waits for an
// outstanding completion to finish, and a completion waits for an
// in-progress load. Concurrent loads of the same model share one backend
// call.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/model"
)

// Status texts shown outside of progress reports.
const (
	StatusIdle       = "Idle"
	StatusReady      = "Ready"
	StatusLoadFailed = "Error: Failed to load model."
)

var (
	// ErrNotLoaded is returned by Complete when no model is ready.
	ErrNotLoaded = errors.New("model not loaded")

	// ErrSuperseded is returned by a load that was replaced by a newer
	// request before it reached the backend.
	ErrSuperseded = errors.New("model load superseded by a newer request")
)

// LoadError reports a failed model load. The manager stays usable and the
// load may be retried.
type LoadError struct {
	Model string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.Model, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// STATE
// =============================================================================

// State is the published model state.
type State struct {
	CurrentModelID      string `json:"currentModelId"`
	IsLoaded            bool   `json:"isLoaded"`
	LoadProgressPercent int    `json:"loadProgressPercent"`
	StatusText          string `json:"statusText"`
}

var progressPattern = regexp.MustCompile(`(\d+)%`)

// ParseProgress extracts the first "NN%" from a progress report, clamped to
// 0..100. ok is false when the text has no percentage.
func ParseProgress(text string) (percent int, ok bool) {
	m := progressPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Only overflow gets here
		return 100, true
	}
	if n > 100 {
		n = 100
	}
	return n, true
}

func initializingText(info model.ModelInfo) string {
	return "Initializing " + info.Label + " Model..."
}

// =============================================================================
// MANAGER
// =============================================================================

type listener struct {
	id int
	fn func(State)
}

// Manager tracks the loaded model and gates access to the engine.
type Manager struct {
	backend engine.Backend
	catalog model.Catalog
	logger  *zap.Logger

	mu         sync.Mutex
	state      State
	eng        engine.Engine
	generation uint64
	listeners  []listener
	nextID     int

	// engineMu is held for the whole of every load and every completion.
	engineMu sync.Mutex
	loads    singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager with nothing loaded. A nil logger disables
// logging.
func NewManager(backend engine.Backend, catalog model.Catalog, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		backend: backend,
		catalog: catalog,
		logger:  logger,
		state:   State{StatusText: StatusIdle},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Catalog returns the model catalog used to resolve names.
func (m *Manager) Catalog() model.Catalog {
	return m.catalog
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether a model is loaded and accepting completions.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsLoaded
}

// Subscribe registers fn for state changes. fn runs on the goroutine that
// caused the change, outside the manager's lock. The returned func removes it.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// update applies fn under the lock and notifies listeners outside it.
// fn returns false to skip notification.
func (m *Manager) update(fn func(s *State) bool) {
	m.mu.Lock()
	if !fn(&m.state) {
		m.mu.Unlock()
		return
	}
	snapshot := m.state
	listeners := make([]listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(snapshot)
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Start loads nameOrID in the background, or the catalog default when it is
// empty. Close cancels it.
func (m *Manager) Start(nameOrID string) {
	if strings.TrimSpace(nameOrID) == "" {
		nameOrID = m.catalog.Default().ID
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		// Failures are already reflected in the state and logged
		_ = m.LoadModel(m.ctx, nameOrID)
	}()
}

// LoadModel loads a model by tier name or backend id. The call blocks until
// the load finishes. On failure the state shows StatusLoadFailed and a
// *LoadError is returned.
func (m *Manager) LoadModel(ctx context.Context, nameOrID string) error {
	info := m.catalog.Resolve(nameOrID)
	if info.ID == "" {
		return &LoadError{Model: nameOrID, Cause: errors.New("empty model id")}
	}

	_, err, shared := m.loads.Do(info.ID, func() (any, error) {
		return nil, m.load(ctx, info)
	})
	if shared {
		m.logger.Debug("MODEL_LOAD_COALESCED", zap.String("model", info.ID))
	}
	return err
}

func (m *Manager) load(ctx context.Context, info model.ModelInfo) error {
	var gen uint64
	m.update(func(s *State) bool {
		m.generation++
		gen = m.generation
		*s = State{
			CurrentModelID: info.ID,
			StatusText:     initializingText(info),
		}
		return true
	})

	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	m.mu.Lock()
	stale := gen != m.generation
	existing := m.eng
	m.mu.Unlock()
	if stale {
		m.logger.Debug("MODEL_LOAD_SKIPPED", zap.String("model", info.ID))
		return ErrSuperseded
	}

	start := time.Now()
	m.logger.Info("MODEL_LOAD_START",
		zap.String("model", info.ID),
		zap.Bool("reload", existing != nil))

	eng, err := m.backend.CreateOrReload(ctx, existing, info.ID, func(r engine.Report) {
		m.update(func(s *State) bool {
			if gen != m.generation {
				return false
			}
			s.StatusText = r.Text
			if pct, ok := ParseProgress(r.Text); ok {
				s.LoadProgressPercent = pct
			}
			return true
		})
	})

	if err != nil {
		m.logger.Error("MODEL_LOAD_FAILED",
			zap.String("model", info.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		m.update(func(s *State) bool {
			if gen != m.generation {
				return false
			}
			s.IsLoaded = false
			s.StatusText = StatusLoadFailed
			return true
		})
		return &LoadError{Model: info.ID, Cause: err}
	}

	m.update(func(s *State) bool {
		m.eng = eng
		if gen != m.generation {
			return false
		}
		s.IsLoaded = true
		s.LoadProgressPercent = 100
		s.StatusText = StatusReady
		return true
	})
	m.logger.Info("MODEL_LOAD_COMPLETE",
		zap.String("model", info.ID),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// =============================================================================
// COMPLETION
// =============================================================================

// Complete runs a completion on the loaded engine. It waits for any load in
// progress and returns a Failure wrapping ErrNotLoaded when no model is ready.
func (m *Manager) Complete(ctx context.Context, turns []engine.Turn, opts engine.Options) engine.Reply {
	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	m.mu.Lock()
	eng, ready := m.eng, m.state.IsLoaded
	m.mu.Unlock()

	if !ready || eng == nil {
		return engine.Fail(ErrNotLoaded)
	}
	return eng.Complete(ctx, turns, opts)
}

// Close cancels the background default load and waits for it.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
