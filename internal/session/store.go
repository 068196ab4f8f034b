package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kapu/chess-arena/internal/engine"
	"github.com/kapu/chess-arena/internal/registry"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrAlreadyFull = errors.New("session already has two players")
)

// Store owns the set of live sessions. It is an explicit object passed
// by reference to the coordinator; a fresh instance per test gives full
// isolation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // creation order, for FirstOpen
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create allocates an Active session with both seats filled and a fresh
// engine at the start position.
func (st *Store) Create(white, black registry.Identity) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		White:      white,
		Black:      black,
		Eng:        engine.New(),
		State:      StateActive,
		Spectators: make(map[string]bool),
		CreatedAt:  time.Now(),
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	st.order = append(st.order, s.ID)
	return s
}

// CreateOpen allocates a session with only the white seat filled,
// waiting for a second player.
func (st *Store) CreateOpen(white registry.Identity) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		White:      white,
		Eng:        engine.New(),
		State:      StateWaiting,
		Spectators: make(map[string]bool),
		CreatedAt:  time.Now(),
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	st.order = append(st.order, s.ID)
	return s
}

// FillOpenSeat seats black in a waiting session and activates it.
func (st *Store) FillOpenSeat(sessionID string, black registry.Identity) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.State != StateWaiting || s.Black.ConnID != "" {
		return nil, ErrAlreadyFull
	}
	s.Black = black
	s.State = StateActive
	return s, nil
}

// FirstOpen returns the oldest session still waiting for a second seat.
func (st *Store) FirstOpen() (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, id := range st.order {
		if s, ok := st.sessions[id]; ok && s.State == StateWaiting {
			return s, true
		}
	}
	return nil, false
}

func (st *Store) Get(sessionID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	return s, ok
}

func (st *Store) Remove(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, sessionID)
	for i, id := range st.order {
		if id == sessionID {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

// SeatSession locates the session in which the connection holds a
// seat. A connection may spectate other sessions at the same time;
// spectator membership is handled by DropSpectator.
func (st *Store) SeatSession(connID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.sessions {
		if _, seated := s.SeatOf(connID); seated {
			return s, true
		}
	}
	return nil, false
}

// DropSpectator removes the connection from every session's spectator
// set. Used on disconnect.
func (st *Store) DropSpectator(connID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		delete(s.Spectators, connID)
	}
}

// Seated reports whether the connection currently occupies a seat in
// any live session. Enforces the one-active-seat-per-identity rule.
func (st *Store) Seated(connID string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.sessions {
		if _, seated := s.SeatOf(connID); seated {
			return true
		}
	}
	return false
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
