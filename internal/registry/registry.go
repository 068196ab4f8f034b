package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidIdentity rejects an empty display name.
var ErrInvalidIdentity = errors.New("invalid identity")

// ErrUnknownConnection rejects operations on a connection id that is not
// live (never registered, or already unregistered).
var ErrUnknownConnection = errors.New("unknown connection")

// Identity is a display name bound to a live connection.
type Identity struct {
	ConnID string `json:"connectionId"`
	Name   string `json:"name"`
}

// Registry tracks live connections and the identity, if any, bound to
// each. It has no game knowledge.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]bool
	names map[string]string
	order []string // connection ids in registration order
}

func New() *Registry {
	return &Registry{
		conns: make(map[string]bool),
		names: make(map[string]string),
	}
}

// Register allocates a tracking entry for a new transport connection and
// returns its id. Ids are never reused.
func (r *Registry) Register() string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = true
	r.order = append(r.order, id)
	return id
}

// Bind attaches a display name to a connection. Re-binding overwrites.
func (r *Registry) Bind(connID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[connID] {
		return ErrUnknownConnection
	}
	r.names[connID] = name
	return nil
}

// Unregister drops the connection and any bound identity. It reports
// whether an identity existed; callers use that to decide whether
// downstream cleanup is needed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[connID] {
		return false
	}
	delete(r.conns, connID)
	_, hadIdentity := r.names[connID]
	delete(r.names, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return hadIdentity
}

// Identity returns the bound identity for a connection, if any.
func (r *Registry) Identity(connID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[connID]
	if !ok {
		return Identity{}, false
	}
	return Identity{ConnID: connID, Name: name}, true
}

// List returns a snapshot of all bound identities in registration order.
func (r *Registry) List() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.names))
	for _, id := range r.order {
		if name, ok := r.names[id]; ok {
			out = append(out, Identity{ConnID: id, Name: name})
		}
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
