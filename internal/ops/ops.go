// Package ops serves the operational endpoints on a listener separate
// from game traffic, so probes never contend with websocket upgrades.
package ops

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/obslog"
)

// Snapshot is the /stats payload.
type Snapshot struct {
	Connections int `json:"connections"`
	Queued      int `json:"queued"`
	Sessions    int `json:"sessions"`
}

// Server exposes /healthz and /stats over fasthttp.
type Server struct {
	addr  string
	stats func() Snapshot
	srv   *fasthttp.Server
}

func NewServer(addr string, stats func() Snapshot) *Server {
	s := &Server{addr: addr, stats: stats}
	s.srv = &fasthttp.Server{Handler: s.handle, Name: "arena-ops"}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	obslog.L().Info("ops_listen", zap.String("addr", s.addr))
	return s.srv.ListenAndServe(s.addr)
}

func (s *Server) Shutdown() error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		body, err := json.Marshal(s.stats())
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
