package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena/internal/archive"
	"github.com/kapu/chess-arena/internal/config"
	"github.com/kapu/chess-arena/internal/coordinator"
	"github.com/kapu/chess-arena/internal/matchmaking"
	"github.com/kapu/chess-arena/internal/msgcat"
	"github.com/kapu/chess-arena/internal/obslog"
	"github.com/kapu/chess-arena/internal/ops"
	"github.com/kapu/chess-arena/internal/registry"
	"github.com/kapu/chess-arena/internal/session"
	"github.com/kapu/chess-arena/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	reg := registry.New()
	dir := matchmaking.New()
	store := session.NewStore()

	hub := ws.NewHub(nil) // handler attached below
	coord := coordinator.New(reg, dir, store, hub, cat)
	hub.SetHandler(coord)

	// optional archive backends
	var recorders archive.Multi
	if cfg.RedisURL != "" {
		r, err := archive.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis archive init error: %v", err)
		}
		defer r.Close()
		recorders = append(recorders, r)
	}
	if cfg.DatabaseURL != "" {
		p, err := archive.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres archive init error: %v", err)
		}
		defer p.Close()
		recorders = append(recorders, p)
	}
	if len(recorders) > 0 {
		coord.AttachRecorder(recorders)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if cfg.OpsAddr != "" {
		opsSrv := ops.NewServer(cfg.OpsAddr, func() ops.Snapshot {
			return ops.Snapshot{
				Connections: reg.Len(),
				Queued:      dir.QueueLen(),
				Sessions:    store.Len(),
			}
		})
		go func() {
			if err := opsSrv.ListenAndServe(); err != nil {
				obslog.L().Error("ops_listen_error", zap.Error(err))
			}
		}()
		defer func() { _ = opsSrv.Shutdown() }()
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(hub, reg.Register))
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		obslog.L().Info("listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("listen_error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	obslog.L().Info("shutdown_begin")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("shutdown_error", zap.Error(err))
	}
	cancel()
	obslog.L().Info("shutdown_done")
}
