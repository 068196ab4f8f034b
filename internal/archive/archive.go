// Package archive persists finished game records. Recording is
// best-effort: gameplay never depends on it, and recorder errors are
// logged by the caller, not propagated.
package archive

import (
	"context"
	"time"
)

// Record is the terminal snapshot of one finished session.
type Record struct {
	SessionID string    `json:"session_id"`
	WhiteName string    `json:"white_name"`
	BlackName string    `json:"black_name"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Reason    string    `json:"reason"` // checkmate | draw | opponent_disconnected | resignation
	Winner    string    `json:"winner,omitempty"`
	FinalFEN  string    `json:"final_fen"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Recorder accepts terminal records.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}

// Multi fans a record out to every backend.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec *Record) error {
	var first error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
