package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"blog-job-service/internal/bootstrap"
	"blog-job-service/internal/config"
	"blog-job-service/internal/logger"
	"blog-job-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg.AppEnv, "blog-worker")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Queue.Backend != "redis" {
		log.Fatal().Str("backend", cfg.Queue.Backend).Msg("worker needs QUEUE_BACKEND=redis")
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("job store")
	}
	defer closeStore()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("queue")
	}
	defer rdb.Close()
	queue := bootstrap.NewQueue(rdb, cfg)

	stages, err := bootstrap.NewProviders(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("stage providers")
	}
	notifier, closeNotifier, err := bootstrap.NewNotifier(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("events")
	}
	defer closeNotifier()

	cleanup, strategy, err := bootstrap.NewCleanup(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup")
	}

	// Reaper: hands claims of crashed workers back to their lane.
	sweeper := worker.NewSweeper(cleanup, strategy, cfg.Cleanup.Interval, log).
		WithReaper(queue, cfg.Queue.VisibilityTimeout)
	go sweeper.Run(ctx)

	processor := bootstrap.NewProcessor(cfg, store, stages, notifier, log)
	pool := worker.NewPool(queue, processor, cfg.Queue.Workers, log)

	log.Info().
		Int("workers", cfg.Queue.Workers).
		Str("redis_addr", cfg.Queue.RedisAddr).
		Str("queue_key", cfg.Queue.QueueKey).
		Str("processing_key", cfg.Queue.ProcessingKey).
		Str("store", cfg.Store.Driver).
		Str("dsn", config.RedactDSN(cfg.StoreDSN())).
		Msg("worker started")

	pool.Run(ctx)

	log.Info().Msg("worker stopped")
}
