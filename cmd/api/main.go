// @title Blog Job Service API
// @version 1.0
// @description Submit blog generation jobs, poll their progress and clean up old records.
// @BasePath /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "blog-job-service/docs"
	"blog-job-service/internal/bootstrap"
	"blog-job-service/internal/config"
	"blog-job-service/internal/logger"
	"blog-job-service/internal/service"
	httptransport "blog-job-service/internal/transport/http"
	"blog-job-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg.AppEnv, "blog-api")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("job store")
	}
	defer closeStore()

	cleanup, strategy, err := bootstrap.NewCleanup(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup")
	}

	var (
		queue    service.JobQueue
		drain    func(context.Context)
		sweepers []*worker.Sweeper
	)

	switch cfg.Queue.Backend {
	case "redis":
		rdb, err := bootstrap.OpenRedis(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("queue")
		}
		defer rdb.Close()
		queue = bootstrap.NewQueue(rdb, cfg)
		drain = func(context.Context) {}

	case "inline":
		// no separate worker process: run the pipeline and the sweeper here
		stages, err := bootstrap.NewProviders(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("stage providers")
		}
		notifier, closeNotifier, err := bootstrap.NewNotifier(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("events")
		}
		defer closeNotifier()

		processor := bootstrap.NewProcessor(cfg, store, stages, notifier, log)
		dispatcher := worker.NewDispatcher(processor, log, worker.WithDispatchWorkers(cfg.Queue.Workers))
		queue = dispatcher
		drain = dispatcher.Shutdown
		sweepers = append(sweepers, worker.NewSweeper(cleanup, strategy, cfg.Cleanup.Interval, log))
	}

	for _, s := range sweepers {
		go s.Run(ctx)
	}

	jobs := service.NewJobService(store, queue, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(httptransport.NewHandler(jobs, cleanup, log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("store", cfg.Store.Driver).
			Str("queue", cfg.Queue.Backend).
			Msg("api started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdown(srv, drain, log)
}

func shutdown(srv *http.Server, drain func(context.Context), log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	drain(ctx)
	log.Info().Msg("api stopped")
}
