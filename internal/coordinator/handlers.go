package coordinator

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/engine"
	"github.com/kapu/chess-arena/internal/obslog"
	"github.com/kapu/chess-arena/internal/session"
	"github.com/kapu/chess-arena/internal/ws"
	"github.com/kapu/chess-arena/pkg/protocol"
)

// OnMessage routes one inbound event to its handler. Payloads that fail
// to decode are dropped with a log; a malformed client cannot damage
// shared state.
func (c *Coordinator) OnMessage(connID string, msg ws.Message) {
	switch msg.Type {
	case protocol.MsgSetName:
		var p protocol.SetName
		if decode(connID, msg, &p) {
			c.handleSetName(connID, p.Name)
		}
	case protocol.MsgJoinQueue:
		c.handleJoinQueue(connID)
	case protocol.MsgJoinGame:
		c.handleJoinGame(connID)
	case protocol.MsgChallenge:
		var p protocol.Challenge
		if decode(connID, msg, &p) {
			c.handleChallenge(connID, p.TargetID)
		}
	case protocol.MsgChallengeResponse:
		var p protocol.ChallengeResponse
		if decode(connID, msg, &p) {
			c.handleChallengeResponse(connID, p.ChallengerID, p.Accept)
		}
	case protocol.MsgWatch:
		var p protocol.Watch
		if decode(connID, msg, &p) {
			c.handleWatch(connID, p.SessionID)
		}
	case protocol.MsgMove:
		var p protocol.Move
		if decode(connID, msg, &p) {
			c.handleMove(connID, p.SessionID, p.Move)
		}
	case protocol.MsgResign:
		var p protocol.Resign
		if decode(connID, msg, &p) {
			c.handleResign(connID, p.SessionID)
		}
	default:
		obslog.L().Debug("msg_unknown", zap.String("conn_id", connID), zap.String("type", msg.Type))
	}
}

func decode(connID string, msg ws.Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		obslog.L().Debug("msg_bad_payload",
			zap.String("conn_id", connID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *Coordinator) handleSetName(connID, name string) {
	if err := c.reg.Bind(connID, name); err != nil {
		c.reject(connID, "", protocol.ReasonInvalidIdentity, "a display name is required")
		return
	}
	id, _ := c.reg.Identity(connID)
	c.sender.Send(connID, ws.NewMessage(protocol.MsgIdentityAssigned, protocol.IdentityAssigned{
		ConnID: connID, Name: id.Name,
	}))
	c.sender.BroadcastAll(ws.NewMessage(protocol.MsgPlayerList, playerList(c.reg.List())))
	obslog.L().Info("identity_bind", zap.String("conn_id", connID), zap.String("name", id.Name))
}

func (c *Coordinator) handleJoinQueue(connID string) {
	id, ok := c.reg.Identity(connID)
	if !ok {
		c.reject(connID, "", protocol.ReasonInvalidIdentity, "set a name before queueing")
		return
	}
	if c.store.Seated(connID) {
		obslog.L().Debug("queue_ignore_seated", zap.String("conn_id", connID))
		return
	}
	pairing, paired, err := c.dir.Enqueue(id)
	if err != nil {
		obslog.L().Debug("queue_ignore", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if paired {
		c.startSession(pairing)
		return
	}
	obslog.L().Info("queue_wait", zap.String("conn_id", connID))
}

// handleJoinGame is the open-join variant: take the first session still
// waiting for its second seat, otherwise open a new one as white.
func (c *Coordinator) handleJoinGame(connID string) {
	id, ok := c.reg.Identity(connID)
	if !ok {
		c.reject(connID, "", protocol.ReasonInvalidIdentity, "set a name before joining")
		return
	}
	if c.store.Seated(connID) {
		obslog.L().Debug("join_ignore_seated", zap.String("conn_id", connID))
		return
	}

	if open, found := c.store.FirstOpen(); found && open.White.ConnID != connID {
		s, err := c.store.FillOpenSeat(open.ID, id)
		if err != nil {
			// lost the seat to a concurrent join; open a fresh session
			obslog.L().Debug("open_seat_gone", zap.String("session_id", open.ID), zap.Error(err))
		} else {
			c.dir.RemoveIfQueued(s.White.ConnID)
			c.dir.RemoveIfQueued(connID)
			c.dir.ClearFor(s.White.ConnID)
			c.dir.ClearFor(connID)
			c.sender.Send(s.White.ConnID, ws.NewMessage(protocol.MsgGameStart, protocol.GameStart{
				SessionID: s.ID, Color: string(engine.White), Opponent: id.Name,
			}))
			c.sender.Send(connID, ws.NewMessage(protocol.MsgGameStart, protocol.GameStart{
				SessionID: s.ID, Color: string(engine.Black), Opponent: s.White.Name,
			}))
			c.broadcastBoard(s)
			obslog.L().Info("session_seat_fill",
				zap.String("session_id", s.ID),
				zap.String("black", connID),
			)
			return
		}
	}

	s := c.store.CreateOpen(id)
	c.sender.Send(connID, ws.NewMessage(protocol.MsgGameStart, protocol.GameStart{
		SessionID: s.ID, Color: string(engine.White),
	}))
	obslog.L().Info("session_open", zap.String("session_id", s.ID), zap.String("white", connID))
}

// handleChallenge records a challenge aimed at target. Unknown targets
// are dropped silently: the challenger learns nothing either way.
func (c *Coordinator) handleChallenge(connID, targetID string) {
	from, ok := c.reg.Identity(connID)
	if !ok {
		return
	}
	target, ok := c.reg.Identity(targetID)
	if !ok {
		obslog.L().Debug("challenge_unknown_target", zap.String("conn_id", connID), zap.String("target", targetID))
		return
	}
	if _, err := c.dir.Challenge(from, target); err != nil {
		obslog.L().Debug("challenge_drop", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	c.sender.Send(target.ConnID, ws.NewMessage(protocol.MsgChallengeReceived, protocol.ChallengeReceived{
		FromID:   from.ConnID,
		FromName: from.Name,
		Detail:   c.cat.Text("notice.challenge_received", from.Name+" has challenged you", map[string]string{"Name": from.Name}),
	}))
	obslog.L().Info("challenge_sent", zap.String("from", connID), zap.String("to", targetID))
}

func (c *Coordinator) handleChallengeResponse(connID, challengerID string, accept bool) {
	responder, ok := c.reg.Identity(connID)
	if !ok {
		return
	}
	pairing, paired, err := c.dir.Respond(responder, challengerID, accept)
	if err != nil {
		obslog.L().Debug("challenge_respond_drop", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if !paired {
		// decline clears the entry with no further effect
		obslog.L().Info("challenge_decline", zap.String("responder", connID), zap.String("challenger", challengerID))
		return
	}
	c.startSession(pairing)
}

func (c *Coordinator) handleWatch(connID, sessionID string) {
	s, ok := c.store.Get(sessionID)
	if !ok {
		c.reject(connID, sessionID, protocol.ReasonUnknownSession, "no such game")
		return
	}
	if _, seated := s.SeatOf(connID); seated {
		return
	}
	s.Spectators[connID] = true
	c.sender.Send(connID, ws.NewMessage(protocol.MsgBoardState, protocol.BoardState{
		SessionID: s.ID,
		FEN:       s.Eng.FEN(),
		Turn:      string(s.Eng.Turn()),
	}))
	obslog.L().Info("spectate_join", zap.String("session_id", sessionID), zap.String("conn_id", connID))
}

// handleMove is the submitAction contract: resolve session, resolve
// seat, check turn, delegate to the rules engine, fan out. Rejections go
// to the submitter only and never mutate session state.
func (c *Coordinator) handleMove(connID, sessionID, move string) {
	s, ok := c.store.Get(sessionID)
	if !ok {
		c.reject(connID, sessionID, protocol.ReasonUnknownSession, "no such game")
		return
	}
	seat, seated := s.SeatOf(connID)
	if !seated {
		c.reject(connID, sessionID, protocol.ReasonNotASeatHolder, "spectators cannot move")
		return
	}
	if seat != s.Eng.Turn() {
		c.reject(connID, sessionID, protocol.ReasonOutOfTurn, "it's not your turn")
		return
	}

	res, err := s.Eng.Apply(move)
	if err != nil {
		if !errors.Is(err, engine.ErrIllegalMove) {
			obslog.L().Error("move_apply_error", zap.String("session_id", sessionID), zap.Error(err))
		}
		c.reject(connID, sessionID, protocol.ReasonIllegalMove, "invalid move")
		return
	}

	effect := protocol.EffectMove
	if res.Capture {
		effect = protocol.EffectCapture
	}
	participants := s.Participants()
	c.sender.Broadcast(participants, ws.NewMessage(protocol.MsgMoveApplied, protocol.MoveApplied{
		SessionID: s.ID,
		Move:      res.UCI,
		SAN:       res.SAN,
		Effect:    effect,
	}))
	c.broadcastBoard(s)
	obslog.L().Info("move",
		zap.String("session_id", s.ID),
		zap.String("conn_id", connID),
		zap.String("uci", res.UCI),
		zap.String("turn", string(s.Eng.Turn())),
	)

	if out, done := s.Eng.Outcome(); done {
		reason := protocol.EndDraw
		winner := ""
		if !out.Draw {
			reason = protocol.EndCheckmate
			winner = string(out.Winner)
		}
		c.finish(s, reason, winner, participants)
	}
}

func (c *Coordinator) handleResign(connID, sessionID string) {
	s, ok := c.store.Get(sessionID)
	if !ok {
		c.reject(connID, sessionID, protocol.ReasonUnknownSession, "no such game")
		return
	}
	seat, seated := s.SeatOf(connID)
	if !seated {
		c.reject(connID, sessionID, protocol.ReasonNotASeatHolder, "spectators cannot resign")
		return
	}
	if s.State != session.StateActive {
		return
	}
	c.finish(s, protocol.EndResignation, string(seat.Opposite()), s.Participants())
}

var _ ws.Handler = (*Coordinator)(nil)
