// Command cleanup runs one cleanup pass against the configured job store and
// prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"blog-job-service/internal/bootstrap"
	"blog-job-service/internal/config"
	"blog-job-service/internal/logger"
	"blog-job-service/internal/service"
)

func main() {
	cfg := config.Load()

	var (
		strategyFlag = flag.String("type", cfg.Cleanup.Strategy, "cleanup strategy: all | status")
		dryRun       = flag.Bool("dry-run", false, "report candidates without deleting")
		maxAge       = flag.Duration("max-age", cfg.Cleanup.MaxAge, "delete jobs not updated for this long")
	)
	flag.Parse()

	cfg.Cleanup.Strategy = *strategyFlag
	cfg.Cleanup.MaxAge = *maxAge

	log := logger.New(cfg.AppEnv, "blog-cleanup")
	// only store and cleanup settings matter here
	if *maxAge <= 0 {
		log.Fatal().Dur("max_age", *maxAge).Msg("-max-age must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("job store")
	}
	defer closeStore()

	cleanup, strategy, err := bootstrap.NewCleanup(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup")
	}

	var report any
	if *dryRun {
		var p *service.Preview
		if p, err = cleanup.Preview(ctx, strategy); p != nil {
			report = p
		}
	} else {
		var res *service.Result
		res, err = cleanup.Execute(ctx, strategy)
		if res != nil {
			report = res
		}
	}
	if report != nil {
		if perr := printJSON(report); perr != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", perr)
		}
	}
	if err != nil {
		closeStore()
		log.Fatal().Err(err).Str("type", string(strategy)).Msg("cleanup failed")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
