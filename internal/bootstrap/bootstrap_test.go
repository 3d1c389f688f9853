package bootstrap_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"blog-job-service/internal/bootstrap"
	"blog-job-service/internal/config"
	"blog-job-service/internal/entity"
	"blog-job-service/internal/events"
	"blog-job-service/internal/service"
	"blog-job-service/internal/worker"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:    config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "jobs.db")},
		Queue:    config.QueueConfig{Backend: "inline", Workers: 1},
		Provider: config.ProviderConfig{Kind: "stub"},
		Pipeline: config.PipelineConfig{StageTimeout: 5 * time.Second, MinDraftWords: 100, TargetWords: 500, MinScore: 8},
		Cleanup:  config.CleanupConfig{MaxAge: time.Hour, Strategy: "status"},
	}
}

func TestInlinePipeline_SQLiteStub(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	log := zerolog.Nop()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeStore()

	stages, err := bootstrap.NewProviders(cfg, log)
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	notifier, closeNotifier, err := bootstrap.NewNotifier(cfg, log)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	defer closeNotifier()
	if _, ok := notifier.(events.Nop); !ok {
		t.Fatalf("expected Nop notifier without RABBIT_URL, got %T", notifier)
	}

	proc := bootstrap.NewProcessor(cfg, store, stages, notifier, log)
	dispatcher := worker.NewDispatcher(proc, log, worker.WithDispatchWorkers(cfg.Queue.Workers))
	jobs := service.NewJobService(store, dispatcher, log)

	job, err := jobs.Submit(ctx, service.SubmitRequest{Idea: "urban beekeeping", Tone: "friendly"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dispatcher.Shutdown(shutdownCtx)

	got, err := jobs.Get(ctx, job.TrackingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entity.StatusCompleted || got.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d (%s: %s)", got.Status, got.Progress, got.ErrorType, got.Error)
	}
	if got.Title == "" || got.WordCount < 500 || len(got.Images) == 0 || got.Rating == nil {
		t.Fatalf("incomplete result: %+v", got)
	}

	cleanup, strategy, err := bootstrap.NewCleanup(cfg, store, log)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	preview, err := cleanup.Preview(ctx, strategy)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Stats.Total != 1 || len(preview.WouldDelete) != 0 {
		t.Fatalf("fresh job must not be a candidate: %+v", preview)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Store.Driver = "oracle"

	if _, _, err := bootstrap.OpenStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewProviders_UnknownKind(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Provider.Kind = "magic"

	if _, err := bootstrap.NewProviders(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewCleanup_RejectsUnknownStrategy(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Cleanup.Strategy = "weekly"

	if _, _, err := bootstrap.NewCleanup(cfg, nil, zerolog.Nop()); !service.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
