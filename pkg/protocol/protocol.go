// Package protocol defines the message types and payload shapes spoken
// over the websocket. External clients import this package instead of
// duplicating the envelope by hand.
package protocol

// Client → server message types.
const (
	MsgSetName           = "set_name"
	MsgJoinQueue         = "join_queue"
	MsgJoinGame          = "join_game"
	MsgChallenge         = "challenge"
	MsgChallengeResponse = "challenge_response"
	MsgWatch             = "watch"
	MsgMove              = "move"
	MsgResign            = "resign"
)

// Server → client message types.
const (
	MsgWelcome           = "welcome"
	MsgIdentityAssigned  = "identity_assigned"
	MsgPlayerList        = "player_list"
	MsgChallengeReceived = "challenge_received"
	MsgGameStart         = "game_start"
	MsgMoveApplied       = "move_applied"
	MsgBoardState        = "board_state"
	MsgActionRejected    = "action_rejected"
	MsgGameOver          = "game_over"
)

// Rejection reasons carried by ActionRejected.
const (
	ReasonInvalidIdentity = "invalid_identity"
	ReasonUnknownSession  = "unknown_session"
	ReasonNotASeatHolder  = "not_a_seat_holder"
	ReasonOutOfTurn       = "out_of_turn"
	ReasonIllegalMove     = "illegal_move"
)

// Game-over reasons carried by GameOver.
const (
	EndCheckmate            = "checkmate"
	EndDraw                 = "draw"
	EndOpponentDisconnected = "opponent_disconnected"
	EndResignation          = "resignation"
)

// Move effects carried by MoveApplied.
const (
	EffectMove    = "move"
	EffectCapture = "capture"
)

type SetName struct {
	Name string `json:"name"`
}

type Challenge struct {
	TargetID string `json:"targetId"`
}

type ChallengeResponse struct {
	ChallengerID string `json:"challengerId"`
	Accept       bool   `json:"accept"`
}

type Watch struct {
	SessionID string `json:"sessionId"`
}

type Move struct {
	SessionID string `json:"sessionId"`
	Move      string `json:"move"`
}

type Resign struct {
	SessionID string `json:"sessionId"`
}

type Welcome struct {
	ConnID string `json:"connectionId"`
}

type IdentityAssigned struct {
	ConnID string `json:"connectionId"`
	Name   string `json:"name"`
}

type Player struct {
	ConnID string `json:"connectionId"`
	Name   string `json:"name"`
}

type PlayerList struct {
	Players []Player `json:"players"`
}

type ChallengeReceived struct {
	FromID   string `json:"fromConnectionId"`
	FromName string `json:"fromName"`
	Detail   string `json:"detail,omitempty"`
}

type GameStart struct {
	SessionID string `json:"sessionId"`
	Color     string `json:"color"`
	Opponent  string `json:"opponentName,omitempty"`
}

type MoveApplied struct {
	SessionID string `json:"sessionId"`
	Move      string `json:"move"`
	SAN       string `json:"san"`
	Effect    string `json:"effect"`
}

type BoardState struct {
	SessionID string `json:"sessionId"`
	FEN       string `json:"fen"`
	Turn      string `json:"turn"`
}

type ActionRejected struct {
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

type GameOver struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
	Winner    string `json:"winner,omitempty"`
	Detail    string `json:"detail,omitempty"`
}
