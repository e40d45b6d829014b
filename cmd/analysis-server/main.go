package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/analysisbuilder"
	appcfg "github.com/park285/chess-uci/internal/config"
	"github.com/park285/chess-uci/internal/httpapi"
	"github.com/park285/chess-uci/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	deps, err := analysisbuilder.New(cfg, logger)
	if err != nil {
		log.Fatalf("analysis init error: %v", err)
	}

	srv := httpapi.NewServer(deps.Service, logger.Named("http"),
		httpapi.WithRequestTimeout(time.Duration(cfg.RequestTimeout)*time.Second))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.HTTPAddr) }()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server stopped", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("close dependencies", zap.Error(err))
	}
}
