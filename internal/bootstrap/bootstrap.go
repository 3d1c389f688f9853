// Package bootstrap turns a config.Config into the wired dependencies shared
// by the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"blog-job-service/internal/config"
	"blog-job-service/internal/events"
	"blog-job-service/internal/repository/gormstore"
	"blog-job-service/internal/repository/postgresql"
	"blog-job-service/internal/service"
	"blog-job-service/internal/stage"
	"blog-job-service/internal/stage/imagesearch"
	"blog-job-service/internal/stage/llm"
	"blog-job-service/internal/stage/stub"
	"blog-job-service/internal/worker"
)

// OpenStore connects the configured job store and creates its table.
// The returned func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.JobRepository, func(), error) {
	log = log.With().Str("driver", cfg.Store.Driver).Str("dsn", config.RedactDSN(cfg.StoreDSN())).Logger()

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgresql.NewPool(ctx, cfg.Store.PostgresDSN, cfg.Store.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("pg: %w", err)
		}
		if err := postgresql.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pg migrate: %w", err)
		}
		log.Info().Msg("job store ready")
		return postgresql.NewJobRepository(pool), pool.Close, nil

	case "mysql", "sqlite":
		db, err := gormstore.Open(cfg.Store.Driver, cfg.StoreDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cfg.Store.Driver, err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		if err := gormstore.Migrate(db); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("%s migrate: %w", cfg.Store.Driver, err)
		}
		log.Info().Msg("job store ready")
		return gormstore.NewJobRepository(db), closeDB, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// OpenRedis connects and pings the queue backend.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rdb, nil
}

// NewQueue returns the redis priority queue for cfg.
func NewQueue(rdb *redis.Client, cfg *config.Config) service.Queue {
	return service.NewRedisPriorityQueue(rdb, cfg.Queue.QueueKey, cfg.Queue.ProcessingKey)
}

// NewProviders builds the five pipeline stages.
func NewProviders(cfg *config.Config, log zerolog.Logger) (stage.Providers, error) {
	switch cfg.Provider.Kind {
	case "stub":
		log.Warn().Msg("using canned stage providers")
		return stub.New().Bundle(), nil

	case "llm":
		text, err := llm.NewClient(llm.Config{
			BaseURL:     cfg.Provider.LLMBaseURL,
			APIKey:      cfg.Provider.LLMAPIKey,
			Model:       cfg.Provider.LLMModel,
			Temperature: 0.7,
			Timeout:     cfg.Provider.LLMTimeout,
		}, log)
		if err != nil {
			return stage.Providers{}, fmt.Errorf("llm: %w", err)
		}
		images := imagesearch.NewClient(imagesearch.Config{
			BaseURL: cfg.Provider.ImageSearchURL,
			APIKey:  cfg.Provider.ImageSearchKey,
			PerPage: cfg.Provider.ImagesPerPost,
		}, log)
		return stage.Providers{
			Topics:    text,
			Drafter:   text,
			Evaluator: text,
			Rewriter:  text,
			Images:    stage.CombineImages(text, images),
		}, nil
	}
	return stage.Providers{}, fmt.Errorf("unknown stage provider %q", cfg.Provider.Kind)
}

// NewNotifier dials RabbitMQ when RABBIT_URL is set. Without it terminal
// events are dropped.
func NewNotifier(cfg *config.Config, log zerolog.Logger) (worker.Notifier, func(), error) {
	if cfg.Events.RabbitURL == "" {
		return events.Nop{}, func() {}, nil
	}
	pub, err := events.Dial(cfg.Events.RabbitURL, cfg.Events.Exchange, log)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: %w", err)
	}
	return pub, func() { _ = pub.Close() }, nil
}

// NewProcessor wires the pipeline with the configured limits.
func NewProcessor(cfg *config.Config, store worker.JobStore, stages stage.Providers, notifier worker.Notifier, log zerolog.Logger) *worker.Processor {
	return worker.NewProcessor(store, stages, log,
		worker.WithStageTimeout(cfg.Pipeline.StageTimeout),
		worker.WithRetries(cfg.Pipeline.StageRetries, 2*time.Second),
		worker.WithThresholds(worker.Thresholds{
			MinDraftWords: cfg.Pipeline.MinDraftWords,
			TargetWords:   cfg.Pipeline.TargetWords,
			MinScore:      cfg.Pipeline.MinScore,
		}),
		worker.WithNotifier(notifier),
	)
}

// NewCleanup builds the cleanup service and parses the configured strategy.
func NewCleanup(cfg *config.Config, store service.CleanupStore, log zerolog.Logger) (*service.CleanupService, service.Strategy, error) {
	strategy, err := service.ParseStrategy(cfg.Cleanup.Strategy)
	if err != nil {
		return nil, "", err
	}
	return service.NewCleanupService(store, cfg.Cleanup.MaxAge, log), strategy, nil
}
