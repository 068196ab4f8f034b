package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/obslog"
)

// Handler receives transport lifecycle and message events. All three
// callbacks are invoked from the hub's single Run goroutine, one event at
// a time to completion; handlers may mutate shared state without further
// coordination.
type Handler interface {
	OnConnect(connID string)
	OnMessage(connID string, msg Message)
	OnDisconnect(connID string)
}

type inbound struct {
	connID string
	msg    Message
}

// Hub tracks live clients and routes every event through one goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound

	handler Handler
}

func NewHub(handler Handler) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 64),
		handler:    handler,
	}
}

// SetHandler attaches the handler after construction. The hub is the
// coordinator's Sender and the coordinator is the hub's Handler, so one
// of the two must be wired late. Must be called before Run.
func (h *Hub) SetHandler(handler Handler) { h.handler = handler }

// Run processes events until ctx is done. It is the only goroutine that
// invokes the handler.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			h.handler.OnConnect(c.id)
		case c := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[c.id]
			delete(h.clients, c.id)
			h.mu.Unlock()
			if known {
				c.closeSend()
				h.handler.OnDisconnect(c.id)
			}
		case in := <-h.incoming:
			h.handler.OnMessage(in.connID, in.msg)
		}
	}
}

// Send queues a message to one connection. A slow client whose send
// buffer is full loses the message rather than blocking the hub.
func (h *Hub) Send(connID string, msg Message) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		obslog.L().Warn("ws_send_drop",
			zap.String("conn_id", connID),
			zap.String("type", msg.Type),
		)
		return false
	}
}

// Broadcast queues a message to each of the given connections.
func (h *Hub) Broadcast(connIDs []string, msg Message) {
	for _, id := range connIDs {
		h.Send(id, msg)
	}
}

// BroadcastAll queues a message to every live connection.
func (h *Hub) BroadcastAll(msg Message) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.Send(id, msg)
	}
}
