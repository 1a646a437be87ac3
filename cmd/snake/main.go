package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/snekarena/api"
	"github.com/brensch/snekarena/config"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/provider"
)

func main() {
	cfg, err := config.LoadSnake(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to parse log level: %v", err)
	}
	logger, err := logging.New(cfg.Log.Format, level, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	server := api.NewServer(
		provider.NewSafe(cfg.Seed),
		api.InfoResponse{Author: cfg.Author, Color: cfg.Color, Head: "default", Tail: "default", Version: "safe"},
		cfg.MoveTimeout,
		logger,
	)
	srv := &http.Server{Addr: cfg.Addr, Handler: server.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("battlesnake server listening", "addr", cfg.Addr, "move_timeout", cfg.MoveTimeout)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
