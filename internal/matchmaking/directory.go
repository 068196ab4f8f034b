package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapu/chess-arena/internal/registry"
)

var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrSelfChallenge  = errors.New("cannot challenge yourself")
	ErrAlreadyQueued  = errors.New("already waiting in queue")
	ErrNoPendingMatch = errors.New("no pending challenge from that player")
)

// Directory holds both matchmaking protocols: the open FIFO queue and
// directed challenges. The two are independent namespaces; an identity
// may be queued and challenged at once, and whichever pairing completes
// first wins (the coordinator invalidates the loser at pairing time).
type Directory struct {
	mu sync.Mutex
	// open queue, FIFO
	queue []registry.Identity
	// targetConnID -> challenges aimed at that connection (append-only;
	// last pending is the latest)
	byTarget map[string][]*Challenge
	seq      uint64
}

func New() *Directory {
	return &Directory{byTarget: make(map[string][]*Challenge)}
}

// Enqueue places an identity into the open queue. If another entry is
// already waiting it is dequeued immediately and the resulting Pairing is
// returned with the waiting entry as A (white by policy).
func (d *Directory) Enqueue(id registry.Identity) (Pairing, bool, error) {
	if id.ConnID == "" {
		return Pairing{}, false, ErrInvalidArgs
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range d.queue {
		if q.ConnID == id.ConnID {
			return Pairing{}, false, ErrAlreadyQueued
		}
	}
	if len(d.queue) > 0 {
		waiting := d.queue[0]
		d.queue = d.queue[1:]
		return Pairing{A: waiting, B: id}, true, nil
	}
	d.queue = append(d.queue, id)
	return Pairing{}, false, nil
}

// RemoveIfQueued drops the connection from the open queue. No-op if the
// connection is not queued.
func (d *Directory) RemoveIfQueued(connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, q := range d.queue {
		if q.ConnID == connID {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return true
		}
	}
	return false
}

// QueueLen returns the number of identities waiting in the open queue.
func (d *Directory) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Challenge records a pending challenge aimed at target.
func (d *Directory) Challenge(from, target registry.Identity) (*Challenge, error) {
	if from.ConnID == "" || target.ConnID == "" {
		return nil, ErrInvalidArgs
	}
	if from.ConnID == target.ConnID {
		return nil, ErrSelfChallenge
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := &Challenge{
		ID:         d.nextID(),
		Challenger: from,
		Target:     target,
		CreatedAt:  time.Now(),
		Status:     StatusPending,
	}
	d.byTarget[target.ConnID] = append(d.byTarget[target.ConnID], ch)
	return ch, nil
}

// Respond resolves the pending challenge from challengerConnID aimed at
// responder. On accept the Pairing carries the challenger as A (white).
// On decline the entry is cleared with no further effect.
func (d *Directory) Respond(responder registry.Identity, challengerConnID string, accept bool) (Pairing, bool, error) {
	if responder.ConnID == "" || challengerConnID == "" {
		return Pairing{}, false, ErrInvalidArgs
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.byTarget[responder.ConnID]
	for i := len(list) - 1; i >= 0; i-- {
		ch := list[i]
		if ch.Status != StatusPending || ch.Challenger.ConnID != challengerConnID {
			continue
		}
		// resolved entries leave the directory immediately
		d.dropAt(responder.ConnID, i)
		if !accept {
			ch.Status = StatusDeclined
			return Pairing{}, false, nil
		}
		ch.Status = StatusAccepted
		return Pairing{A: ch.Challenger, B: responder}, true, nil
	}
	return Pairing{}, false, ErrNoPendingMatch
}

// dropAt removes entry i from target's list; callers hold d.mu.
func (d *Directory) dropAt(targetConnID string, i int) {
	list := d.byTarget[targetConnID]
	list = append(list[:i], list[i+1:]...)
	if len(list) == 0 {
		delete(d.byTarget, targetConnID)
		return
	}
	d.byTarget[targetConnID] = list
}

// ClearFor removes every pending challenge where the connection is the
// challenger or the target. Called on disconnect and at pairing time.
// It returns the connection ids of the counterparties whose pending
// challenges were dropped, so callers can notify them if they care.
func (d *Directory) ClearFor(connID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var affected []string
	// challenges aimed at this connection
	for _, ch := range d.byTarget[connID] {
		if ch.Status == StatusPending {
			ch.Status = StatusDeclined
			affected = append(affected, ch.Challenger.ConnID)
		}
	}
	delete(d.byTarget, connID)
	// challenges issued by this connection
	for target, list := range d.byTarget {
		kept := list[:0]
		for _, ch := range list {
			if ch.Status == StatusPending && ch.Challenger.ConnID == connID {
				ch.Status = StatusDeclined
				affected = append(affected, target)
				continue
			}
			kept = append(kept, ch)
		}
		if len(kept) == 0 {
			delete(d.byTarget, target)
		} else {
			d.byTarget[target] = kept
		}
	}
	return affected
}

func (d *Directory) nextID() string {
	n := atomic.AddUint64(&d.seq, 1)
	return fmt.Sprintf("ch-%d-%d", time.Now().UnixNano(), n)
}
