package session

import (
	"time"

	"github.com/kapu/chess-arena/internal/engine"
	"github.com/kapu/chess-arena/internal/registry"
)

// State represents a session lifecycle state.
type State string

const (
	StateWaiting  State = "WAITING"
	StateActive   State = "ACTIVE"
	StateFinished State = "FINISHED"
)

// Session is one live paired game: two authoritative seats and exactly
// one rules-engine instance, exclusively owned. Whose turn it is is read
// from the engine, never stored separately.
type Session struct {
	ID    string
	White registry.Identity
	Black registry.Identity
	Eng   *engine.Engine
	State State

	// read-only observers, keyed by connection id
	Spectators map[string]bool

	CreatedAt time.Time
}

// SeatOf returns the seat color held by connID, or false if the
// connection holds neither seat.
func (s *Session) SeatOf(connID string) (engine.Color, bool) {
	switch connID {
	case s.White.ConnID:
		return engine.White, true
	case s.Black.ConnID:
		return engine.Black, true
	}
	return "", false
}

// Seat returns the identity occupying the given seat color.
func (s *Session) Seat(c engine.Color) registry.Identity {
	if c == engine.White {
		return s.White
	}
	return s.Black
}

// Participants returns the connection ids of both seats plus all
// spectators; the broadcast set for board updates.
func (s *Session) Participants() []string {
	out := make([]string, 0, 2+len(s.Spectators))
	if s.White.ConnID != "" {
		out = append(out, s.White.ConnID)
	}
	if s.Black.ConnID != "" {
		out = append(out, s.Black.ConnID)
	}
	for id := range s.Spectators {
		out = append(out, id)
	}
	return out
}
