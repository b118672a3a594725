package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-bridge/internal/bridgebuilder"
	appcfg "github.com/park285/chess-bridge/internal/config"
	"github.com/park285/chess-bridge/internal/httpapi"
	"github.com/park285/chess-bridge/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bridgebuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bridge_init_error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("shutdown_close_error", zap.Error(err))
		}
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("listen_error", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}
	srv := httpapi.New(deps.Controller, logger.Named("http"))

	logger.Info("chess_bridge_ready",
		zap.String("addr", ln.Addr().String()),
		zap.String("engine", deps.EnginePath),
		zap.Bool("journal", deps.Redis != nil),
		zap.Bool("postgres", deps.DB != nil),
		zap.String("notify_mode", cfg.NotifyMode),
		zap.Bool("restored", deps.Restored),
	)
	for _, route := range httpapi.Routes() {
		logger.Info("route", zap.String("endpoint", route))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("serve_error", zap.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("shutdown_error", zap.Error(err))
	}
}
