package engine

import (
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// ErrIllegalMove is returned by Apply when the move is not legal in the
// current position. The position is left untouched.
var ErrIllegalMove = errors.New("illegal move")

// Outcome describes a terminal position.
type Outcome struct {
	Winner Color // empty for draws
	Draw   bool
	Method string // "checkmate", "stalemate", "insufficient_material", ...
}

// MoveResult describes an accepted move.
type MoveResult struct {
	UCI     string
	SAN     string
	Capture bool
	FEN     string
}

// Engine wraps one rules-engine game instance. Each session owns exactly
// one Engine; nothing else mutates it.
type Engine struct {
	game  *nchess.Game
	moves []string // UCI, in order
	sans  []string
}

// New returns an engine at the canonical start position.
func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// Apply validates and applies a move. Input is UCI first, SAN as a
// fallback, mirroring how users actually type moves.
func (e *Engine) Apply(moveStr string) (MoveResult, error) {
	raw := strings.TrimSpace(moveStr)
	if raw == "" {
		return MoveResult{}, ErrIllegalMove
	}

	pos := e.game.Position()
	uci := strings.ToLower(raw)

	// UCI decoding only parses coordinates; legality is checked by Move.
	var mv *nchess.Move
	if decoded, derr := (nchess.UCINotation{}).Decode(pos, uci); derr == nil {
		if err := e.game.Move(decoded, nil); err != nil {
			return MoveResult{}, ErrIllegalMove
		}
		mv = decoded
	} else {
		if err := e.game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return MoveResult{}, ErrIllegalMove
		}
		mv = lastMove(e.game)
		if mv == nil {
			return MoveResult{}, ErrIllegalMove
		}
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	e.moves = append(e.moves, mv.String())
	e.sans = append(e.sans, san)

	return MoveResult{
		UCI:     mv.String(),
		SAN:     san,
		Capture: mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
		FEN:     e.game.FEN(),
	}, nil
}

// Turn is derived from the position on every call. There is no cached
// turn flag that could drift from the rules state.
func (e *Engine) Turn() Color {
	return colorFrom(e.game.Position().Turn())
}

// FEN returns the current position in FEN.
func (e *Engine) FEN() string { return e.game.FEN() }

// MovesUCI returns the applied moves in UCI, in order.
func (e *Engine) MovesUCI() []string {
	return append([]string(nil), e.moves...)
}

// MovesSAN returns the applied moves in SAN, in order.
func (e *Engine) MovesSAN() []string {
	return append([]string(nil), e.sans...)
}

// Outcome reports whether the game has reached a terminal position.
func (e *Engine) Outcome() (Outcome, bool) {
	switch e.game.Outcome() {
	case nchess.WhiteWon:
		return Outcome{Winner: White, Method: methodName(e.game)}, true
	case nchess.BlackWon:
		return Outcome{Winner: Black, Method: methodName(e.game)}, true
	case nchess.Draw:
		return Outcome{Draw: true, Method: methodName(e.game)}, true
	}
	return Outcome{}, false
}

func methodName(g *nchess.Game) string {
	switch g.Method() {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	default:
		return "draw"
	}
}

func lastMove(g *nchess.Game) *nchess.Move {
	moves := g.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
