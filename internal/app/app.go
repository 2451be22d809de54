// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the session store, model lifecycle, conversation
// controller and persistence into one object a front end drives.
//
// The owning process calls OnStart once, then drives the presentation
// operations, then calls Close. Front ends read State and wait for
// notifications from Subscribe.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/chat"
	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/lifecycle"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/session"
	"github.com/jeranaias/brainchat/internal/storage"
)

// ErrClosed is returned by operations after Close.
var ErrClosed = errors.New("app is closed")

// Deps are the collaborators New wires together.
type Deps struct {
	Backend engine.Backend
	Catalog model.Catalog
	KV      storage.KV

	// StorageKey names the persisted collection. Empty uses storage.DefaultKey.
	StorageKey string
	// DefaultModel is loaded by OnStart. Empty uses the catalog default.
	DefaultModel string

	Logger *zap.Logger
}

// State is what a front end renders.
type State struct {
	Model    lifecycle.State     `json:"model"`
	IsBusy   bool                `json:"isBusy"`
	Sessions []model.ChatSession `json:"sessions"`
	ActiveID string              `json:"activeId"`
	// Messages of the active session, empty when none is active.
	Messages []model.Message `json:"messages"`
}

// App is the core facade.
type App struct {
	store      *session.Store
	manager    *lifecycle.Manager
	controller *chat.Controller
	adapter    *storage.Adapter
	writer     *storage.Writer
	logger     *zap.Logger

	defaultModel string

	mu          sync.Mutex
	started     bool
	closed      bool
	subs        map[int]chan struct{}
	nextSub     int
	unsubscribe []func()
}

// New wires the core. Nothing runs until OnStart.
func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := deps.Catalog
	if catalog.Default().ID == "" {
		catalog = model.DefaultCatalog()
	}

	store := session.NewStore()
	manager := lifecycle.NewManager(deps.Backend, catalog, logger.Named("lifecycle"))
	adapter := storage.NewAdapter(deps.KV, deps.StorageKey, logger.Named("storage"))

	a := &App{
		store:        store,
		manager:      manager,
		controller:   chat.NewController(store, manager, logger.Named("chat")),
		adapter:      adapter,
		writer:       storage.NewWriter(adapter, logger.Named("storage")),
		logger:       logger,
		defaultModel: deps.DefaultModel,
		subs:         make(map[int]chan struct{}),
	}

	a.unsubscribe = append(a.unsubscribe,
		store.OnChange(func(session.Snapshot) { a.broadcast() }),
		manager.Subscribe(func(lifecycle.State) { a.broadcast() }),
		a.controller.OnBusyChange(func(bool) { a.broadcast() }),
	)
	return a
}

// =============================================================================
// LIFECYCLE HOOKS
// =============================================================================

// OnStart restores persisted sessions, starts persisting changes, then begins
// loading the default model in the background. Calls after the first are
// no-ops. When the stored collection could not be read for a reason other
// than corruption, changes are kept in memory only so the unread data
// survives.
func (a *App) OnStart(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	if a.restore(ctx) {
		unsub := a.store.OnChange(a.OnSessionCollectionChanged)
		a.mu.Lock()
		a.unsubscribe = append(a.unsubscribe, unsub)
		a.mu.Unlock()
	}

	a.manager.Start(a.defaultModel)
	return nil
}

// restore installs the persisted collection, or opens a fresh session when
// there is nothing usable. It reports whether later changes may be written
// back: false when the read itself failed and the stored data is unknown.
func (a *App) restore(ctx context.Context) bool {
	sessions, found, err := a.adapter.Load(ctx)
	writable := true
	switch {
	case err != nil:
		var perr *storage.ParseError
		if !errors.As(err, &perr) {
			writable = false
			a.logger.Error("PERSISTENCE_LOAD_FAILED",
				zap.String("key", a.adapter.Key()),
				zap.Bool("read_only", true),
				zap.Error(err))
		}
	case found && len(sessions) > 0:
		a.store.Install(sessions)
		a.logger.Info("SESSIONS_RESTORED", zap.Int("count", a.store.Len()))
		return true
	}
	a.store.CreateSession()
	return writable
}

// OnSessionCollectionChanged hands the collection to the background writer.
// Active-id moves alone are not persisted.
func (a *App) OnSessionCollectionChanged(snap session.Snapshot) {
	if !snap.SessionsChanged {
		return
	}
	a.writer.Submit(snap.Sessions)
}

// Close stops background work and flushes pending writes. If ctx expires
// first, Close returns its error and shutdown continues in the background.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		a.controller.Close()
		a.manager.Close()

		a.mu.Lock()
		unsubs := a.unsubscribe
		a.unsubscribe = nil
		for id, ch := range a.subs {
			close(ch)
			delete(a.subs, id)
		}
		a.mu.Unlock()
		for _, u := range unsubs {
			u()
		}

		a.writer.Close()
		done <- a.adapter.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// PRESENTATION OPERATIONS
// =============================================================================

// LoadModel loads a model by tier name or backend id and blocks until the
// load finishes.
func (a *App) LoadModel(ctx context.Context, nameOrID string) error {
	if a.isClosed() {
		return ErrClosed
	}
	return a.manager.LoadModel(ctx, nameOrID)
}

// StartLoad begins loading a model in the background. Progress is visible in
// State.
func (a *App) StartLoad(nameOrID string) error {
	if a.isClosed() {
		return ErrClosed
	}
	a.manager.Start(nameOrID)
	return nil
}

// CreateSession opens a new session, reusing the active one if it is empty.
func (a *App) CreateSession() string {
	return a.store.CreateSession()
}

// DeleteSession removes a session. Unknown ids are ignored.
func (a *App) DeleteSession(id string) {
	a.store.DeleteSession(id)
}

// TogglePin flips a session's pin flag.
func (a *App) TogglePin(id string) {
	a.store.TogglePin(id)
}

// SetActive selects a session. The id is not validated.
func (a *App) SetActive(id string) {
	a.store.SetActive(id)
}

// Send runs one conversation turn on the active session.
func (a *App) Send(ctx context.Context, text string) (model.Message, error) {
	if a.isClosed() {
		return model.Message{}, ErrClosed
	}
	return a.controller.Send(ctx, text)
}

// =============================================================================
// READ-ONLY VIEWS
// =============================================================================

// State returns a consistent copy of everything a front end renders.
func (a *App) State() State {
	snap := a.store.Snapshot()
	st := State{
		Model:    a.manager.State(),
		IsBusy:   a.controller.Busy(),
		Sessions: snap.Sessions,
		ActiveID: snap.ActiveID,
		Messages: []model.Message{},
	}
	if st.Sessions == nil {
		st.Sessions = []model.ChatSession{}
	}
	if active, ok := snap.Active(); ok && len(active.Messages) > 0 {
		st.Messages = active.Messages
	}
	return st
}

// Catalog returns the models a user can pick by tier name.
func (a *App) Catalog() model.Catalog {
	return a.manager.Catalog()
}

// Grouped returns pinned sessions and the rest, each in collection order.
func (a *App) Grouped() (pinned, others []model.ChatSession) {
	return a.store.Grouped()
}

// Session returns one session by id.
func (a *App) Session(id string) (model.ChatSession, bool) {
	return a.store.Get(id)
}

// WaitIdle blocks until background title jobs finish.
func (a *App) WaitIdle() {
	a.controller.Wait()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Subscribe returns a channel that receives a value whenever State may have
// changed. Notifications coalesce: a slow reader sees one pending signal, not
// a backlog. The channel is closed by cancel or by Close.
func (a *App) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.nextSub++
	id := a.nextSub
	a.subs[id] = ch
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			close(c)
			delete(a.subs, id)
		}
	}
	return ch, cancel
}

func (a *App) broadcast() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (a *App) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
