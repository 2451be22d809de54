// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/model"
)

// saveTimeout bounds a single background write.
const saveTimeout = 10 * time.Second

// Writer saves snapshots on a background goroutine. Snapshots submitted while
// a write is running collapse into the latest one. Failures are logged and
// never reach the submitter.
type Writer struct {
	adapter *Adapter
	logger  *zap.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []model.ChatSession
	dirty     bool
	submitted uint64
	written   uint64
	closed    bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewWriter starts the background goroutine. Call Close to stop it.
func NewWriter(adapter *Adapter, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		adapter: adapter,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit queues sessions for saving and returns immediately. The slice must
// not be modified afterwards. Submits after Close are ignored.
func (w *Writer) Submit(sessions []model.ChatSession) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = sessions
	w.dirty = true
	w.submitted++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until everything submitted so far has been attempted.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	target := w.submitted
	for w.written < target {
		w.cond.Wait()
	}
}

// Close writes the last pending snapshot and stops the goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.writePending()
		case <-w.quit:
			w.writePending()
			return
		}
	}
}

func (w *Writer) writePending() {
	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return
	}
	sessions, seq := w.pending, w.submitted
	w.pending, w.dirty = nil, false
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	err := w.adapter.Save(ctx, sessions)
	cancel()

	if err != nil {
		w.logger.Error("PERSIST_WRITE_FAILED",
			zap.String("key", w.adapter.Key()),
			zap.Int("sessions", len(sessions)),
			zap.Error(err))
	} else {
		w.logger.Debug("PERSIST_WRITE", zap.Int("sessions", len(Persistable(sessions))))
	}

	w.mu.Lock()
	w.written = seq
	w.cond.Broadcast()
	w.mu.Unlock()
}
