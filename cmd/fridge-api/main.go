package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fridge/internal/api"
	"fridge/internal/board"
	"fridge/internal/config"
	"fridge/internal/db"
	"fridge/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	docStore, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	boardSvc := board.NewService(docStore, logger)
	server := api.New(cfg, logger, boardSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("fridge api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// openStore picks the Postgres backend when DATABASE_URL is set, otherwise
// the JSON file backend.
func openStore(ctx context.Context, cfg config.APIConfig) (board.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg, err := store.NewPgStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	}
	fs, err := store.NewFileStore(cfg.DataFile)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
