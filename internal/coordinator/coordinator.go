// Package coordinator is the orchestration core: it owns the mapping
// from connections to identities, from identities to matchmaking state,
// and from matched pairs to live sessions with enforced turn order.
// Every method runs on the hub's single event goroutine.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/archive"
	"github.com/kapu/chess-arena/internal/engine"
	"github.com/kapu/chess-arena/internal/matchmaking"
	"github.com/kapu/chess-arena/internal/msgcat"
	"github.com/kapu/chess-arena/internal/obslog"
	"github.com/kapu/chess-arena/internal/registry"
	"github.com/kapu/chess-arena/internal/session"
	"github.com/kapu/chess-arena/internal/ws"
	"github.com/kapu/chess-arena/pkg/protocol"
)

// Sender delivers messages to connections. Implemented by ws.Hub; tests
// substitute a capture fake.
type Sender interface {
	Send(connID string, msg ws.Message) bool
	Broadcast(connIDs []string, msg ws.Message)
	BroadcastAll(msg ws.Message)
}

type Coordinator struct {
	reg    *registry.Registry
	dir    *matchmaking.Directory
	store  *session.Store
	sender Sender
	cat    *msgcat.Catalog
	rec    archive.Recorder // optional
}

func New(reg *registry.Registry, dir *matchmaking.Directory, store *session.Store, sender Sender, cat *msgcat.Catalog) *Coordinator {
	return &Coordinator{reg: reg, dir: dir, store: store, sender: sender, cat: cat}
}

// AttachRecorder wires an archive backend for finished games.
func (c *Coordinator) AttachRecorder(r archive.Recorder) {
	if c != nil {
		c.rec = r
	}
}

// OnConnect sends the newcomer its connection id and the current
// presence list.
func (c *Coordinator) OnConnect(connID string) {
	c.sender.Send(connID, ws.NewMessage(protocol.MsgWelcome, protocol.Welcome{ConnID: connID}))
	c.sender.Send(connID, ws.NewMessage(protocol.MsgPlayerList, playerList(c.reg.List())))
	obslog.L().Info("conn_open", zap.String("conn_id", connID))
}

// OnDisconnect runs the full cleanup contract: identity, matchmaking
// state, then any session the connection participated in. Safe to call
// for connections that never bound a name.
func (c *Coordinator) OnDisconnect(connID string) {
	hadIdentity := c.reg.Unregister(connID)
	c.dir.RemoveIfQueued(connID)
	c.dir.ClearFor(connID)

	// A seat and spectator memberships are independent: resolve the
	// seated session, then drop the connection from every watch set.
	if s, ok := c.store.SeatSession(connID); ok {
		seat, _ := s.SeatOf(connID)
		switch s.State {
		case session.StateActive:
			remaining := s.Seat(seat.Opposite())
			c.finish(s, protocol.EndOpponentDisconnected, string(seat.Opposite()), excluding(s.Participants(), connID))
			obslog.L().Info("session_abandon",
				zap.String("session_id", s.ID),
				zap.String("conn_id", connID),
				zap.String("remaining", remaining.ConnID),
			)
		case session.StateWaiting:
			// nobody to notify: the open seat never filled
			s.State = session.StateFinished
			c.store.Remove(s.ID)
			obslog.L().Info("session_discard", zap.String("session_id", s.ID))
		}
	}
	c.store.DropSpectator(connID)

	if hadIdentity {
		c.sender.BroadcastAll(ws.NewMessage(protocol.MsgPlayerList, playerList(c.reg.List())))
	}
	obslog.L().Info("conn_close", zap.String("conn_id", connID), zap.Bool("had_identity", hadIdentity))
}

// startSession turns a pairing into a live session. Both parties drop
// out of all other matchmaking state at this moment; when an identity
// was both queued and challenged, the first pairing to complete wins.
func (c *Coordinator) startSession(p matchmaking.Pairing) {
	if c.store.Seated(p.A.ConnID) || c.store.Seated(p.B.ConnID) {
		// one active seat per identity
		obslog.L().Warn("pairing_drop_seated",
			zap.String("a", p.A.ConnID),
			zap.String("b", p.B.ConnID),
		)
		return
	}
	c.dir.RemoveIfQueued(p.A.ConnID)
	c.dir.RemoveIfQueued(p.B.ConnID)
	c.dir.ClearFor(p.A.ConnID)
	c.dir.ClearFor(p.B.ConnID)

	s := c.store.Create(p.A, p.B)
	c.sender.Send(p.A.ConnID, ws.NewMessage(protocol.MsgGameStart, protocol.GameStart{
		SessionID: s.ID, Color: string(engine.White), Opponent: p.B.Name,
	}))
	c.sender.Send(p.B.ConnID, ws.NewMessage(protocol.MsgGameStart, protocol.GameStart{
		SessionID: s.ID, Color: string(engine.Black), Opponent: p.A.Name,
	}))
	c.broadcastBoard(s)
	obslog.L().Info("session_start",
		zap.String("session_id", s.ID),
		zap.String("white", p.A.ConnID),
		zap.String("black", p.B.ConnID),
	)
}

// finish transitions a session to Finished exactly once: emit the
// terminal notification to notify, remove from the store, archive.
func (c *Coordinator) finish(s *session.Session, reason, winner string, notify []string) {
	if s.State == session.StateFinished {
		return
	}
	s.State = session.StateFinished
	c.sender.Broadcast(notify, ws.NewMessage(protocol.MsgGameOver, protocol.GameOver{
		SessionID: s.ID,
		Reason:    reason,
		Winner:    winner,
		Detail:    c.endDetail(s, reason, winner),
	}))
	c.store.Remove(s.ID)
	c.archive(s, reason, winner)
	obslog.L().Info("session_end",
		zap.String("session_id", s.ID),
		zap.String("reason", reason),
		zap.String("winner", winner),
	)
}

// archive hands the terminal record to the recorder off the event
// goroutine; a slow backend must never stall gameplay.
func (c *Coordinator) archive(s *session.Session, reason, winner string) {
	if c.rec == nil {
		return
	}
	rec := &archive.Record{
		SessionID: s.ID,
		WhiteName: s.White.Name,
		BlackName: s.Black.Name,
		MovesUCI:  s.Eng.MovesUCI(),
		MovesSAN:  s.Eng.MovesSAN(),
		Reason:    reason,
		Winner:    winner,
		FinalFEN:  s.Eng.FEN(),
		StartedAt: s.CreatedAt,
		EndedAt:   time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.rec.Record(ctx, rec); err != nil {
			obslog.L().Error("archive_error", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}()
}

func (c *Coordinator) broadcastBoard(s *session.Session) {
	c.sender.Broadcast(s.Participants(), ws.NewMessage(protocol.MsgBoardState, protocol.BoardState{
		SessionID: s.ID,
		FEN:       s.Eng.FEN(),
		Turn:      string(s.Eng.Turn()),
	}))
}

// endDetail renders the human-readable line that accompanies a
// terminal notification.
func (c *Coordinator) endDetail(s *session.Session, reason, winner string) string {
	winName, loseName := s.White.Name, s.Black.Name
	if winner == string(engine.Black) {
		winName, loseName = s.Black.Name, s.White.Name
	}
	switch reason {
	case protocol.EndOpponentDisconnected:
		return c.cat.Text("notice.opponent_disconnected", "your opponent disconnected", nil)
	case protocol.EndCheckmate:
		return c.cat.Text("notice.checkmate", "checkmate", map[string]string{"Winner": winName})
	case protocol.EndResignation:
		return c.cat.Text("notice.resignation", "resignation", map[string]string{"Winner": winName, "Loser": loseName})
	case protocol.EndDraw:
		method := "draw"
		if out, done := s.Eng.Outcome(); done {
			method = out.Method
		}
		return c.cat.Text("notice.draw", "draw", map[string]string{"Method": method})
	}
	return ""
}

func (c *Coordinator) reject(connID, sessionID, reason, fallback string) {
	c.sender.Send(connID, ws.NewMessage(protocol.MsgActionRejected, protocol.ActionRejected{
		SessionID: sessionID,
		Reason:    reason,
		Detail:    c.cat.Text("reject."+reason, fallback, nil),
	}))
}

func playerList(ids []registry.Identity) protocol.PlayerList {
	out := protocol.PlayerList{Players: make([]protocol.Player, 0, len(ids))}
	for _, id := range ids {
		out.Players = append(out.Players, protocol.Player{ConnID: id.ConnID, Name: id.Name})
	}
	return out
}

func excluding(ids []string, skip string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
