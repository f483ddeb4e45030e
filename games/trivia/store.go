/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	mu         sync.Mutex
	session    *Session
	lastActive atomic.Int64
	removed    atomic.Bool
}

func (e *entry) touch() {
	e.lastActive.Store(time.Now().UnixNano())
}

// Store holds live sessions. Each session has its own lock, so commands for
// one session run one at a time while other sessions proceed.
//
// Lock order is entry.mu before Store.mu.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
	}
}

// Create adds an empty session with the given round quota.
func (s *Store) Create(quota int) Session {
	for {
		id := uuid.NewString()

		s.mu.Lock()
		if _, exists := s.sessions[id]; exists {
			s.mu.Unlock()
			continue
		}

		e := &entry{session: newSession(id, quota)}
		e.touch()
		s.sessions[id] = e
		snap := e.session.Snapshot()
		s.mu.Unlock()

		return snap
	}
}

// Update runs fn with exclusive access to the session. If fn closes the
// session it is removed from the store once fn returns, and closed reports
// whether this call removed it. A session reaped while fn ran is not
// removed twice.
func (s *Store) Update(id string, fn func(*Session) error) (closed bool, err error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false, ErrUnknownSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed.Load() {
		return false, ErrUnknownSession
	}
	e.touch()

	err = fn(e.session)

	if e.session.closed {
		closed = s.remove(id, e)
	}

	return closed, err
}

// View returns a snapshot of the session without counting as activity.
func (s *Store) View(id string) (Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrUnknownSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed.Load() {
		return Session{}, ErrUnknownSession
	}

	return e.session.Snapshot(), nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Reap removes sessions idle since before cutoff and returns their ids.
func (s *Store) Reap(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, e := range s.sessions {
		if e.lastActive.Load() < cutoff.UnixNano() {
			e.removed.Store(true)
			delete(s.sessions, id)
			reaped = append(reaped, id)
		}
	}
	slices.Sort(reaped)

	return reaped
}

func (s *Store) remove(id string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.removed.Store(true)
	if cur, ok := s.sessions[id]; ok && cur == e {
		delete(s.sessions, id)
		return true
	}

	return false
}
