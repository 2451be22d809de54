// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat turns user input into session updates and completions.
//
// The Controller accepts one Send at a time. A Send that arrives while another
// is running is rejected, never queued. The first successful exchange in a
// session starts a background job that replaces the instant title with a
// model-written one.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/session"
	"github.com/jeranaias/brainchat/internal/title"
)

// Rejections. A rejected Send changes nothing.
var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrBusy          = errors.New("a reply is already being generated")
	ErrModelNotReady = errors.New("model is not loaded")
)

// InferenceError reports a failed completion. The user message stays in the
// session and no reply is added.
type InferenceError struct {
	SessionID string
	Cause     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for session %s: %v", e.SessionID, e.Cause)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// Models is the view of the model lifecycle the controller needs.
// lifecycle.Manager satisfies it.
type Models interface {
	Ready() bool
	title.Completer
}

// =============================================================================
// CONTROLLER
// =============================================================================

type busyListener struct {
	id int
	fn func(bool)
}

// Controller runs conversation turns against the session store.
type Controller struct {
	store  *session.Store
	models Models
	titles *title.Generator
	logger *zap.Logger

	busy atomic.Bool

	mu        sync.Mutex
	listeners []busyListener
	nextID    int

	// ctx scopes background title jobs; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// NewController wires a controller. A nil logger disables logging.
func NewController(store *session.Store, models Models, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:  store,
		models: models,
		titles: title.NewGenerator(models, logger),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Busy reports whether a Send is in progress.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// OnBusyChange registers fn for busy transitions. The returned func removes it.
func (c *Controller) OnBusyChange(fn func(busy bool)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, busyListener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) notifyBusy(busy bool) {
	c.mu.Lock()
	listeners := make([]busyListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.fn(busy)
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send appends text as a user message to the active session, creating one if
// needed, and appends the model's reply. It returns the assistant message.
//
// Rejections return ErrEmptyMessage, ErrBusy or ErrModelNotReady without
// side effects. A failed completion returns *InferenceError and keeps the
// user message.
func (c *Controller) Send(ctx context.Context, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if c.busy.Load() {
		return model.Message{}, ErrBusy
	}
	if !c.models.Ready() {
		return model.Message{}, ErrModelNotReady
	}
	if !c.busy.CompareAndSwap(false, true) {
		return model.Message{}, ErrBusy
	}

	target, ok := c.store.Active()
	if !ok {
		id := c.store.CreateSession()
		target, _ = c.store.Get(id)
		target.ID = id
	}

	// The only first-message check: the target had no messages before this turn
	history := target.Messages
	first := len(history) == 0
	if first {
		c.store.Rename(target.ID, title.Instant(text))
	}

	userMsg := model.NewUserMessage(text)
	c.store.AppendMessage(target.ID, userMsg)
	c.notifyBusy(true)

	turns := make([]engine.Turn, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, engine.Turn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, engine.Turn{Role: model.RoleUser, Content: userMsg.Content})

	start := time.Now()
	reply := c.models.Complete(ctx, turns, engine.Options{})

	var (
		out model.Message
		err error
	)
	switch r := reply.(type) {
	case engine.Success:
		out = model.NewAssistantMessage(r.Content)
		if !c.store.AppendMessage(target.ID, out) {
			c.logger.Warn("REPLY_DROPPED",
				zap.String("session", target.ID),
				zap.String("reason", "session deleted"))
		}
		c.logger.Debug("INFERENCE_COMPLETE",
			zap.String("session", target.ID),
			zap.Int("turns", len(turns)),
			zap.Duration("elapsed", time.Since(start)))
	case engine.Failure:
		err = &InferenceError{SessionID: target.ID, Cause: r}
	default:
		err = &InferenceError{SessionID: target.ID, Cause: fmt.Errorf("unexpected reply %T", reply)}
	}
	if err != nil {
		c.logger.Error("INFERENCE_ERROR",
			zap.String("session", target.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}

	c.busy.Store(false)
	c.notifyBusy(false)

	if first && err == nil {
		c.startTitleJob(target.ID, text)
	}
	return out, err
}

// startTitleJob replaces the instant title with a smart one when it resolves,
// unless the session has been deleted by then.
func (c *Controller) startTitleJob(sessionID, text string) {
	c.jobs.Add(1)
	go func() {
		defer c.jobs.Done()
		t := c.titles.Generate(c.ctx, text)
		if !c.store.Rename(sessionID, t) {
			c.logger.Debug("TITLE_DROPPED", zap.String("session", sessionID))
			return
		}
		c.logger.Debug("TITLE_APPLIED", zap.String("session", sessionID), zap.String("title", t))
	}()
}

// Wait blocks until outstanding title jobs finish.
func (c *Controller) Wait() {
	c.jobs.Wait()
}

// Close cancels outstanding title jobs and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.jobs.Wait()
}
