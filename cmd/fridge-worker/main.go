package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fridge/internal/board"
	"fridge/internal/config"
	"fridge/internal/db"
	"fridge/internal/store"
)

// The worker closes the previous month's board on a schedule. CloseMonth is
// idempotent per month key, so ticking more often than monthly is harmless.
// With the file backend, run it against the API's data file only while the
// API is stopped; the in-process lock does not span processes. The Postgres
// backend is safe to share.
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

	svc := board.NewService(docStore, logger)

	if cfg.WorkerRunOnce {
		result, err := svc.CloseMonth(ctx, "")
		if err != nil {
			logger.Error("close month failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "status", result.Status, "month", result.Month)
		return
	}

	ticker := time.NewTicker(cfg.CloseEvery)
	defer ticker.Stop()

	logger.Info("worker started", "close_every", cfg.CloseEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			result, err := svc.CloseMonth(ctx, "")
			if err != nil {
				logger.Error("close month failed", "err", err)
				continue
			}
			if result.Status == board.CloseStatusClosed {
				logger.Info("month closed", "month", result.Month)
			}
		}
	}
}

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
