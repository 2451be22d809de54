// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/jeranaias/brainchat/internal/model"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a deep copy of the store taken after a mutation.
type Snapshot struct {
	Sessions []model.ChatSession
	ActiveID string

	// SessionsChanged is false when only the active id moved.
	SessionsChanged bool
}

// Active returns the active session from the snapshot, if it exists.
func (s Snapshot) Active() (model.ChatSession, bool) {
	if s.ActiveID == "" {
		return model.ChatSession{}, false
	}
	for _, sess := range s.Sessions {
		if sess.ID == s.ActiveID {
			return sess, true
		}
	}
	return model.ChatSession{}, false
}

// =============================================================================
// STORE
// =============================================================================

type changeListener struct {
	id int
	fn func(Snapshot)
}

// Store is the ordered session collection. The zero value is not usable; use
// NewStore.
type Store struct {
	mu        sync.Mutex
	sessions  []*model.ChatSession
	activeID  string
	listeners []changeListener
	nextID    int
}

// NewStore creates an empty store with no active session.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers fn to run after every mutation. The returned func
// removes it.
func (s *Store) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, changeListener{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// mutate runs fn under the lock. If fn reports a change, listeners are called
// with a snapshot after the lock is released.
func (s *Store) mutate(fn func() (changed, sessionsChanged bool)) {
	s.mu.Lock()
	changed, sessionsChanged := fn()
	if !changed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	snap.SessionsChanged = sessionsChanged
	listeners := make([]changeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	out := make([]model.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = *sess.Clone()
	}
	return Snapshot{Sessions: out, ActiveID: s.activeID}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// COLLECTION OPERATIONS
// =============================================================================

// CreateSession makes a new empty session active and returns its id. When the
// active session is already empty its id is returned and nothing changes, so
// repeated calls never pile up blank sessions.
func (s *Store) CreateSession() string {
	var id string
	s.mutate(func() (bool, bool) {
		if i := s.indexLocked(s.activeID); i >= 0 && s.sessions[i].IsEmpty() {
			id = s.activeID
			return false, false
		}

		sess := model.NewChatSession()
		s.sessions = append([]*model.ChatSession{sess}, s.sessions...)
		s.activeID = sess.ID
		id = sess.ID
		return true, true
	})
	return id
}

// DeleteSession removes a session. If it was active, the first remaining
// session becomes active, or none. Unknown ids are ignored.
func (s *Store) DeleteSession(id string) {
	s.mutate(func() (bool, bool) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, false
		}
		s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
		if s.activeID == id {
			s.activeID = ""
			if len(s.sessions) > 0 {
				s.activeID = s.sessions[0].ID
			}
		}
		return true, true
	})
}

// TogglePin flips the pin flag. Ordering is unchanged. Unknown ids are ignored.
func (s *Store) TogglePin(id string) {
	s.mutate(func() (bool, bool) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, false
		}
		s.sessions[i].IsPinned = !s.sessions[i].IsPinned
		return true, true
	})
}

// SetActive points the active id at id without validating it. Active reports
// false for an id that does not exist.
func (s *Store) SetActive(id string) {
	s.mutate(func() (bool, bool) {
		if s.activeID == id {
			return false, false
		}
		s.activeID = id
		return true, false
	})
}

// Rename sets a session's title. It reports false if the session is gone.
func (s *Store) Rename(id, title string) bool {
	found := false
	s.mutate(func() (bool, bool) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, false
		}
		found = true
		if s.sessions[i].Title == title {
			return false, false
		}
		s.sessions[i].Title = title
		return true, true
	})
	return found
}

// AppendMessage adds msg to the end of a session. It reports false if the
// session is gone.
func (s *Store) AppendMessage(id string, msg model.Message) bool {
	found := false
	s.mutate(func() (bool, bool) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, false
		}
		found = true
		s.sessions[i].Messages = append(s.sessions[i].Messages, msg)
		return true, true
	})
	return found
}

// Install replaces the whole collection, keeping its order. Duplicate ids
// keep their first occurrence. The first session becomes active.
func (s *Store) Install(sessions []model.ChatSession) {
	s.mutate(func() (bool, bool) {
		seen := make(map[string]bool, len(sessions))
		next := make([]*model.ChatSession, 0, len(sessions))
		for i := range sessions {
			if sessions[i].ID == "" || seen[sessions[i].ID] {
				continue
			}
			seen[sessions[i].ID] = true
			next = append(next, sessions[i].Clone())
		}
		s.sessions = next
		s.activeID = ""
		if len(next) > 0 {
			s.activeID = next[0].ID
		}
		return true, true
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a copy of a session.
func (s *Store) Get(id string) (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.ChatSession{}, false
	}
	return *s.sessions[i].Clone(), true
}

// Active returns a copy of the active session. It reports false when no
// session is active or the active id is dangling.
func (s *Store) Active() (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(s.activeID)
	if i < 0 {
		return model.ChatSession{}, false
	}
	return *s.sessions[i].Clone(), true
}

// ActiveID returns the active id as set, even if dangling.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Snapshot returns a deep copy of the collection in order.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	snap.SessionsChanged = true
	return snap
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Grouped splits the collection into pinned and unpinned sessions, each in
// collection order, for sidebar display.
func (s *Store) Grouped() (pinned, others []model.ChatSession) {
	snap := s.Snapshot()
	for _, sess := range snap.Sessions {
		if sess.IsPinned {
			pinned = append(pinned, sess)
		} else {
			others = append(others, sess)
		}
	}
	return pinned, others
}
