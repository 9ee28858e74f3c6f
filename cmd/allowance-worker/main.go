package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"paghetta/internal/amqp"
	"paghetta/internal/config"
	"paghetta/internal/log"
	"paghetta/internal/services"
	"paghetta/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration before logging so the handler honors LOG_LEVEL/LOG_FORMAT
	cfg := config.Load()

	logger := log.New(log.Config{
		Component: log.ComponentWorker,
		Handler:   log.NewHandler(cfg.LogFormat, log.ParseLevel(cfg.LogLevel)),
	})
	log.SetDefault(logger)

	logger.Info("Starting allowance-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// Select the store backend
	var store storage.Store
	switch cfg.DataBackend {
	case "memory":
		store = storage.NewMemoryStore()
		logger.Info("Using in-memory store, state will not survive restarts")
	default:
		sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = sqliteRepo
		logger.Info("SQLite store ready", "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	// Initialize AMQP client for publishing notifications. The worker keeps
	// running without it; payouts do not depend on the broker.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.Info("AMQP client initialized, notifications enabled")
		}
	} else {
		logger.Info("AMQP disabled, notifications will not be published")
	}

	// Wire the services
	budgets := services.NewBudgetGuard(store)
	ledger := services.NewLedger(store, budgets, notifier)
	scheduler := services.NewAllowanceScheduler(store, ledger, notifier)

	// Shut down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Allowance processor configured",
		"interval", cfg.ProcessInterval,
		"backend", cfg.DataBackend)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(cfg.ProcessInterval)
		defer ticker.Stop()

		// Run once on startup, then on every tick
		runBatch(ctx, logger, scheduler)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runBatch(ctx, logger, scheduler)
			}
		}
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Allowance-worker shutdown complete")
}

func runBatch(ctx context.Context, logger *log.Logger, scheduler *services.AllowanceScheduler) {
	start := time.Now()
	result, err := scheduler.ProcessAllPendingAllowances(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Allowance batch failed", log.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Allowance batch complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
}
