package ws

import (
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/kapu/chess-arena/internal/obslog"
)

// Server upgrades HTTP requests to websocket connections and hands them
// to the hub. Connection ids come from the injected allocator so the
// transport never invents identifiers the domain layer doesn't know.
type Server struct {
	hub   *Hub
	newID func() string
}

func NewServer(hub *Hub, newID func() string) *Server {
	return &Server{hub: hub, newID: newID}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	id := s.newID()
	c := newClient(id, conn, s.hub)
	s.hub.register <- c

	go c.writeLoop()
	c.readLoop()
}
