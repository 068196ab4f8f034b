package session

import (
	"testing"

	"github.com/kapu/chess-arena/internal/engine"
	"github.com/kapu/chess-arena/internal/registry"
)

func ident(id, name string) registry.Identity {
	return registry.Identity{ConnID: id, Name: name}
}

func TestCreateIsActive(t *testing.T) {
	st := NewStore()
	s := st.Create(ident("a", "alice"), ident("b", "bob"))
	if s.State != StateActive {
		t.Fatalf("expected active session, got %s", s.State)
	}
	if s.Eng.Turn() != engine.White {
		t.Fatalf("fresh session must start with white to move")
	}
	got, ok := st.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatalf("Get after Create failed")
	}
}

func TestOpenSeatLifecycle(t *testing.T) {
	st := NewStore()
	s := st.CreateOpen(ident("a", "alice"))
	if s.State != StateWaiting {
		t.Fatalf("expected waiting session, got %s", s.State)
	}

	filled, err := st.FillOpenSeat(s.ID, ident("b", "bob"))
	if err != nil {
		t.Fatalf("FillOpenSeat: %v", err)
	}
	if filled.State != StateActive || filled.Black.ConnID != "b" {
		t.Fatalf("unexpected session after fill: %+v", filled)
	}

	if _, err := st.FillOpenSeat(s.ID, ident("c", "carol")); err != ErrAlreadyFull {
		t.Fatalf("expected ErrAlreadyFull, got %v", err)
	}
	if _, err := st.FillOpenSeat("missing", ident("c", "carol")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFirstOpenPicksOldest(t *testing.T) {
	st := NewStore()
	if _, found := st.FirstOpen(); found {
		t.Fatalf("empty store must have no open session")
	}
	first := st.CreateOpen(ident("a", "alice"))
	st.CreateOpen(ident("b", "bob"))

	open, found := st.FirstOpen()
	if !found || open.ID != first.ID {
		t.Fatalf("expected oldest open session %s, got %+v", first.ID, open)
	}
}

func TestSeatSessionAndDropSpectator(t *testing.T) {
	st := NewStore()
	s := st.Create(ident("a", "alice"), ident("b", "bob"))
	other := st.Create(ident("c", "carol"), ident("d", "dave"))
	s.Spectators["ghost"] = true
	other.Spectators["ghost"] = true

	for _, conn := range []string{"a", "b"} {
		got, ok := st.SeatSession(conn)
		if !ok || got.ID != s.ID {
			t.Fatalf("SeatSession(%s) failed", conn)
		}
	}
	if _, ok := st.SeatSession("ghost"); ok {
		t.Fatalf("spectator must not resolve to a seat")
	}
	if _, ok := st.SeatSession("nobody"); ok {
		t.Fatalf("unexpected session for unknown connection")
	}

	st.DropSpectator("ghost")
	if s.Spectators["ghost"] || other.Spectators["ghost"] {
		t.Fatalf("DropSpectator must clear every watch set")
	}

	if !st.Seated("a") || st.Seated("ghost") {
		t.Fatalf("Seated must cover seats only")
	}
}

func TestRemove(t *testing.T) {
	st := NewStore()
	s := st.Create(ident("a", "alice"), ident("b", "bob"))
	st.Remove(s.ID)
	if _, ok := st.Get(s.ID); ok {
		t.Fatalf("session survived Remove")
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}
