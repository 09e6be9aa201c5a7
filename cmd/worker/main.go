// Package main is the entry point for the lotkeeper background worker.
// It runs the periodic notification scans, the outbox relay and cleanup.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"lotkeeper/internal/app"
	"lotkeeper/internal/config"
	"lotkeeper/internal/jobs"
	"lotkeeper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
		Service:     "lotkeeper-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting lotkeeper worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer func() { _ = a.Close() }()

	cron, err := jobs.Schedule(cfg.Worker)
	if err != nil {
		log.Fatalw("failed to build schedule", "error", err)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		Concurrency: cfg.Worker.Concurrency,
		Logger:      log,
		Handlers:    a.JobHandlers().TaskHandlers(),
		Cron:        cron,
	})
	if err != nil {
		log.Fatalw("failed to create worker", "error", err)
	}

	// Job metrics live in the worker process, so it serves its own scrape
	// endpoint.
	if cfg.Worker.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           a.Metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("worker stopped with error", "error", err)
	}
}
