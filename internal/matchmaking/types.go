package matchmaking

import (
	"time"

	"github.com/kapu/chess-arena/internal/registry"
)

// Status represents a challenge lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

// Challenge is a directed pairing proposal from one identity to another.
// It lives until accepted, declined, or either party disconnects.
type Challenge struct {
	ID         string
	Challenger registry.Identity
	Target     registry.Identity
	CreatedAt  time.Time
	Status     Status
}

// Pairing is the output of both matchmaking protocols. A is the side
// designated white by policy: the longer-waiting queue entry, or the
// challenger.
type Pairing struct {
	A registry.Identity
	B registry.Identity
}
