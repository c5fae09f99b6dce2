package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/centledger/backend/internal/audit"
	"github.com/centledger/backend/internal/config"
	"github.com/centledger/backend/internal/database"
	"github.com/centledger/backend/internal/ledger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.PoolDSN())
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("Ledger schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations (audit job queue)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// Ledger core
	repo := ledger.NewRepository(pool)
	svc := ledger.NewService(repo)
	if err := svc.Bootstrap(ctx); err != nil {
		slog.Error("Mint account bootstrap failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Ledger ready", "audit_interval", cfg.Audit.Interval)

	// Periodic integrity audit
	workers := river.NewWorkers()
	river.AddWorker(workers, audit.NewWorker(audit.NewPGChecker(pool), logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Audit.Interval),
				func() (river.JobArgs, *river.InsertOpts) {
					return audit.Args{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	handler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}).Handler(newRouter(svc, logger))

	addr := "0.0.0.0:" + cfg.HTTP.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
