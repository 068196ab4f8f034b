package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/kapu/chess-arena/internal/matchmaking"
	"github.com/kapu/chess-arena/internal/msgcat"
	"github.com/kapu/chess-arena/internal/registry"
	"github.com/kapu/chess-arena/internal/session"
	"github.com/kapu/chess-arena/internal/ws"
	"github.com/kapu/chess-arena/pkg/protocol"
)

// fakeSender captures every message per connection.
type fakeSender struct {
	msgs map[string][]ws.Message
	all  []ws.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: make(map[string][]ws.Message)}
}

func (f *fakeSender) Send(connID string, msg ws.Message) bool {
	f.msgs[connID] = append(f.msgs[connID], msg)
	return true
}

func (f *fakeSender) Broadcast(connIDs []string, msg ws.Message) {
	for _, id := range connIDs {
		f.Send(id, msg)
	}
}

func (f *fakeSender) BroadcastAll(msg ws.Message) {
	f.all = append(f.all, msg)
}

func (f *fakeSender) byType(connID, msgType string) []ws.Message {
	var out []ws.Message
	for _, m := range f.msgs[connID] {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last(t *testing.T, connID, msgType string, v interface{}) {
	t.Helper()
	list := f.byType(connID, msgType)
	if len(list) == 0 {
		t.Fatalf("no %q message for %s", msgType, connID)
	}
	if err := json.Unmarshal(list[len(list)-1].Payload, v); err != nil {
		t.Fatalf("decode %q payload: %v", msgType, err)
	}
}

type fixture struct {
	reg    *registry.Registry
	dir    *matchmaking.Directory
	store  *session.Store
	sender *fakeSender
	coord  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	f := &fixture{
		reg:    registry.New(),
		dir:    matchmaking.New(),
		store:  session.NewStore(),
		sender: newFakeSender(),
	}
	f.coord = New(f.reg, f.dir, f.store, f.sender, cat)
	return f
}

// connect registers a connection and binds a name, the normal join flow.
func (f *fixture) connect(t *testing.T, name string) string {
	t.Helper()
	id := f.reg.Register()
	f.coord.OnConnect(id)
	f.coord.OnMessage(id, ws.NewMessage(protocol.MsgSetName, protocol.SetName{Name: name}))
	return id
}

func (f *fixture) send(t *testing.T, connID, msgType string, payload interface{}) {
	t.Helper()
	f.coord.OnMessage(connID, ws.NewMessage(msgType, payload))
}

// pairViaQueue enqueues both and returns the session id, white first.
func (f *fixture) pairViaQueue(t *testing.T, a, b string) string {
	t.Helper()
	f.send(t, a, protocol.MsgJoinQueue, nil)
	f.send(t, b, protocol.MsgJoinQueue, nil)
	var start protocol.GameStart
	f.sender.last(t, a, protocol.MsgGameStart, &start)
	if start.Color != "white" {
		t.Fatalf("first queued entry must be white, got %s", start.Color)
	}
	return start.SessionID
}

func TestSetNameRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	id := f.reg.Register()
	f.coord.OnConnect(id)
	f.send(t, id, protocol.MsgSetName, protocol.SetName{Name: "  "})

	var rej protocol.ActionRejected
	f.sender.last(t, id, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonInvalidIdentity {
		t.Fatalf("expected invalid_identity, got %s", rej.Reason)
	}
	if len(f.reg.List()) != 0 {
		t.Fatalf("rejected name must not appear in presence list")
	}
}

func TestQueuePairingCreatesOneSession(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	if f.store.Len() != 1 {
		t.Fatalf("expected exactly one session, got %d", f.store.Len())
	}
	var start protocol.GameStart
	f.sender.last(t, b, protocol.MsgGameStart, &start)
	if start.Color != "black" || start.SessionID != sid || start.Opponent != "alice" {
		t.Fatalf("unexpected game_start for black: %+v", start)
	}

	// a later entry does not pair with either seated player
	c := f.connect(t, "carol")
	f.send(t, c, protocol.MsgJoinQueue, nil)
	if f.store.Len() != 1 || f.dir.QueueLen() != 1 {
		t.Fatalf("third player must wait: sessions=%d queued=%d", f.store.Len(), f.dir.QueueLen())
	}
}

func TestQueueRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	id := f.reg.Register()
	f.coord.OnConnect(id)
	f.send(t, id, protocol.MsgJoinQueue, nil)

	var rej protocol.ActionRejected
	f.sender.last(t, id, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonInvalidIdentity {
		t.Fatalf("expected invalid_identity, got %s", rej.Reason)
	}
	if f.dir.QueueLen() != 0 {
		t.Fatalf("anonymous connection must not queue")
	}
}

func TestMoveFlowAndTurnAuthority(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	// black cannot open
	f.send(t, b, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e7e5"})
	var rej protocol.ActionRejected
	f.sender.last(t, b, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonOutOfTurn {
		t.Fatalf("expected out_of_turn, got %s", rej.Reason)
	}

	// white plays e4; both sides see the move and the new position
	f.send(t, a, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e2e4"})
	for _, conn := range []string{a, b} {
		var board protocol.BoardState
		f.sender.last(t, conn, protocol.MsgBoardState, &board)
		if board.Turn != "black" {
			t.Fatalf("%s: expected black to move after e4, got %s", conn, board.Turn)
		}
		var applied protocol.MoveApplied
		f.sender.last(t, conn, protocol.MsgMoveApplied, &applied)
		if applied.Move != "e2e4" || applied.Effect != protocol.EffectMove {
			t.Fatalf("%s: unexpected move_applied: %+v", conn, applied)
		}
	}

	// black replays white's opening from the wrong side: illegal
	boardsBefore := len(f.sender.byType(a, protocol.MsgBoardState))
	f.send(t, b, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e2e4"})
	f.sender.last(t, b, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonIllegalMove {
		t.Fatalf("expected illegal_move, got %s", rej.Reason)
	}
	// the rejection is invisible to the opponent
	if len(f.sender.byType(a, protocol.MsgBoardState)) != boardsBefore {
		t.Fatalf("rejected action leaked a broadcast to the opponent")
	}
}

func TestSpectatorCannotMove(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	ghost := f.connect(t, "ghost")
	f.send(t, ghost, protocol.MsgWatch, protocol.Watch{SessionID: sid})
	var board protocol.BoardState
	f.sender.last(t, ghost, protocol.MsgBoardState, &board)

	f.send(t, ghost, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e2e4"})
	var rej protocol.ActionRejected
	f.sender.last(t, ghost, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonNotASeatHolder {
		t.Fatalf("expected not_a_seat_holder, got %s", rej.Reason)
	}

	// spectator sees subsequent accepted moves
	f.send(t, a, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e2e4"})
	if got := len(f.sender.byType(ghost, protocol.MsgMoveApplied)); got != 1 {
		t.Fatalf("spectator missed the broadcast: %d", got)
	}
}

func TestChallengeAcceptStartsSession(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: b})
	var ch protocol.ChallengeReceived
	f.sender.last(t, b, protocol.MsgChallengeReceived, &ch)
	if ch.FromID != a || ch.FromName != "alice" {
		t.Fatalf("unexpected challenge_received: %+v", ch)
	}

	f.send(t, b, protocol.MsgChallengeResponse, protocol.ChallengeResponse{ChallengerID: a, Accept: true})
	var start protocol.GameStart
	f.sender.last(t, a, protocol.MsgGameStart, &start)
	if start.Color != "white" {
		t.Fatalf("challenger must be white, got %s", start.Color)
	}
	f.sender.last(t, b, protocol.MsgGameStart, &start)
	if start.Color != "black" || start.Opponent != "alice" {
		t.Fatalf("unexpected game_start for responder: %+v", start)
	}
}

func TestChallengeDeclineCreatesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: b})
	f.send(t, b, protocol.MsgChallengeResponse, protocol.ChallengeResponse{ChallengerID: a, Accept: false})
	if f.store.Len() != 0 {
		t.Fatalf("decline must not create a session")
	}
	if got := len(f.sender.byType(a, protocol.MsgGameStart)); got != 0 {
		t.Fatalf("challenger received game_start after decline")
	}
}

func TestChallengeUnknownTargetSilent(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	before := len(f.sender.msgs[a])
	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: "nobody"})
	if len(f.sender.msgs[a]) != before {
		t.Fatalf("unknown target must be silent to the challenger")
	}
}

func TestQueuedPairingInvalidatesChallenges(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	c := f.connect(t, "carol")

	// a challenges c, then pairs with b through the queue first
	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: c})
	f.pairViaQueue(t, a, b)

	// c's accept arrives too late: the challenge was invalidated
	f.send(t, c, protocol.MsgChallengeResponse, protocol.ChallengeResponse{ChallengerID: a, Accept: true})
	if f.store.Len() != 1 {
		t.Fatalf("stale challenge accept created a second session")
	}
	if f.store.Seated(c) {
		t.Fatalf("c must not be seated")
	}
}

func TestDisconnectSeatedEndsSession(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	f.coord.OnDisconnect(a)

	ends := f.sender.byType(b, protocol.MsgGameOver)
	if len(ends) != 1 {
		t.Fatalf("remaining player must get exactly one game_over, got %d", len(ends))
	}
	var over protocol.GameOver
	if err := json.Unmarshal(ends[0].Payload, &over); err != nil {
		t.Fatalf("decode game_over: %v", err)
	}
	if over.Reason != protocol.EndOpponentDisconnected || over.Winner != "black" {
		t.Fatalf("unexpected game_over: %+v", over)
	}
	if f.store.Len() != 0 {
		t.Fatalf("session survived the disconnect")
	}

	// a later action against the dead session id
	f.send(t, b, protocol.MsgMove, protocol.Move{SessionID: sid, Move: "e7e5"})
	var rej protocol.ActionRejected
	f.sender.last(t, b, protocol.MsgActionRejected, &rej)
	if rej.Reason != protocol.ReasonUnknownSession {
		t.Fatalf("expected unknown_session, got %s", rej.Reason)
	}
}

func TestDisconnectSpectatorLeavesSessionAlive(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	ghost := f.connect(t, "ghost")
	f.send(t, ghost, protocol.MsgWatch, protocol.Watch{SessionID: sid})
	f.coord.OnDisconnect(ghost)

	if f.store.Len() != 1 {
		t.Fatalf("spectator disconnect killed the session")
	}
	if len(f.sender.byType(a, protocol.MsgGameOver))+len(f.sender.byType(b, protocol.MsgGameOver)) != 0 {
		t.Fatalf("spectator disconnect emitted game_over")
	}
	s, _ := f.store.Get(sid)
	if s.Spectators[ghost] {
		t.Fatalf("spectator not removed from the set")
	}
}

func TestDisconnectClearsMatchmaking(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	f.send(t, a, protocol.MsgJoinQueue, nil)
	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: b})

	f.coord.OnDisconnect(a)
	if f.dir.QueueLen() != 0 {
		t.Fatalf("queue entry survived disconnect")
	}
	// b enqueues and waits instead of pairing with the ghost of a
	f.send(t, b, protocol.MsgJoinQueue, nil)
	if f.store.Len() != 0 {
		t.Fatalf("paired with a disconnected entry")
	}
}

func TestCheckmateEndsSession(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	// fool's mate, black delivers
	moves := []struct {
		conn string
		mv   string
	}{
		{a, "f2f3"}, {b, "e7e5"}, {a, "g2g4"}, {b, "d8h4"},
	}
	for _, m := range moves {
		f.send(t, m.conn, protocol.MsgMove, protocol.Move{SessionID: sid, Move: m.mv})
	}

	for _, conn := range []string{a, b} {
		var over protocol.GameOver
		f.sender.last(t, conn, protocol.MsgGameOver, &over)
		if over.Reason != protocol.EndCheckmate || over.Winner != "black" {
			t.Fatalf("%s: unexpected game_over: %+v", conn, over)
		}
	}
	if f.store.Len() != 0 {
		t.Fatalf("finished session must be removed immediately")
	}
}

func TestResign(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	f.send(t, a, protocol.MsgResign, protocol.Resign{SessionID: sid})
	var over protocol.GameOver
	f.sender.last(t, b, protocol.MsgGameOver, &over)
	if over.Reason != protocol.EndResignation || over.Winner != "black" {
		t.Fatalf("unexpected game_over: %+v", over)
	}
	if f.store.Len() != 0 {
		t.Fatalf("session survived resignation")
	}
}

func TestOpenJoinVariant(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	f.send(t, a, protocol.MsgJoinGame, nil)

	var start protocol.GameStart
	f.sender.last(t, a, protocol.MsgGameStart, &start)
	if start.Color != "white" || start.Opponent != "" {
		t.Fatalf("creator must open as white with no opponent: %+v", start)
	}
	s, ok := f.store.Get(start.SessionID)
	if !ok || s.State != session.StateWaiting {
		t.Fatalf("expected waiting session")
	}

	b := f.connect(t, "bob")
	f.send(t, b, protocol.MsgJoinGame, nil)
	f.sender.last(t, b, protocol.MsgGameStart, &start)
	if start.Color != "black" || start.Opponent != "alice" {
		t.Fatalf("joiner must fill black: %+v", start)
	}
	s, _ = f.store.Get(start.SessionID)
	if s.State != session.StateActive {
		t.Fatalf("session must activate on second join")
	}

	// white was told about the opponent too
	f.sender.last(t, a, protocol.MsgGameStart, &start)
	if start.Opponent != "bob" {
		t.Fatalf("creator not told the opponent name: %+v", start)
	}
}

func TestOpenSessionDiscardedOnCreatorDisconnect(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	f.send(t, a, protocol.MsgJoinGame, nil)
	f.coord.OnDisconnect(a)
	if f.store.Len() != 0 {
		t.Fatalf("abandoned open session leaked")
	}
}

func TestOneSeatPerIdentity(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	f.pairViaQueue(t, a, b)

	// seated players cannot queue or open again
	f.send(t, a, protocol.MsgJoinQueue, nil)
	f.send(t, a, protocol.MsgJoinGame, nil)
	if f.store.Len() != 1 || f.dir.QueueLen() != 0 {
		t.Fatalf("seated player re-entered matchmaking: sessions=%d queued=%d", f.store.Len(), f.dir.QueueLen())
	}
}

// Replaying all broadcast moves on a fresh engine reproduces the final
// broadcast FEN: the coordinator introduces no divergence.
func TestCoordinatorPositionMatchesReplay(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	seq := []struct {
		conn string
		mv   string
	}{
		{a, "e2e4"}, {b, "c7c5"}, {a, "g1f3"}, {b, "d7d6"}, {a, "d2d4"}, {b, "c5d4"},
	}
	for _, m := range seq {
		f.send(t, m.conn, protocol.MsgMove, protocol.Move{SessionID: sid, Move: m.mv})
	}

	var board protocol.BoardState
	f.sender.last(t, a, protocol.MsgBoardState, &board)

	s, ok := f.store.Get(sid)
	if !ok {
		t.Fatalf("session gone")
	}
	if board.FEN != s.Eng.FEN() {
		t.Fatalf("broadcast FEN diverged from engine: %s vs %s", board.FEN, s.Eng.FEN())
	}
}

// A seat and spectator memberships are cleaned up independently:
// watching another game must not shadow the player's own session on
// disconnect.
func TestDisconnectSeatedPlayerAlsoWatching(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")
	sid := f.pairViaQueue(t, a, b)

	c := f.connect(t, "carol")
	f.send(t, c, protocol.MsgJoinGame, nil)
	var open protocol.GameStart
	f.sender.last(t, c, protocol.MsgGameStart, &open)
	f.send(t, a, protocol.MsgWatch, protocol.Watch{SessionID: open.SessionID})

	f.coord.OnDisconnect(a)

	var over protocol.GameOver
	f.sender.last(t, b, protocol.MsgGameOver, &over)
	if over.SessionID != sid || over.Reason != protocol.EndOpponentDisconnected || over.Winner != "black" {
		t.Fatalf("unexpected game_over for remaining player: %+v", over)
	}
	if _, ok := f.store.Get(sid); ok {
		t.Fatalf("abandoned session survived disconnect")
	}
	watched, ok := f.store.Get(open.SessionID)
	if !ok {
		t.Fatalf("spectated session must outlive the watcher")
	}
	if watched.Spectators[a] {
		t.Fatalf("disconnected watcher still in the spectator set")
	}
}

func TestNotificationDetails(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	f.send(t, a, protocol.MsgChallenge, protocol.Challenge{TargetID: b})
	var ch protocol.ChallengeReceived
	f.sender.last(t, b, protocol.MsgChallengeReceived, &ch)
	if ch.Detail != "alice has challenged you to a game." {
		t.Fatalf("unexpected challenge detail: %q", ch.Detail)
	}

	f.send(t, b, protocol.MsgChallengeResponse, protocol.ChallengeResponse{ChallengerID: a, Accept: true})
	f.coord.OnDisconnect(a)
	var over protocol.GameOver
	f.sender.last(t, b, protocol.MsgGameOver, &over)
	if over.Detail != "Your opponent disconnected. Game over." {
		t.Fatalf("unexpected game_over detail: %q", over.Detail)
	}
}
