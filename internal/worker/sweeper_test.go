package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/service"
	"blog-job-service/internal/worker"
)

func TestSweeper_RemovesStaleTerminalJobs(t *testing.T) {
	store := newMemStore()

	stale := entity.NewJob("old", "tone", 1, time.Now().UTC().Add(-48*time.Hour))
	stale.Status = entity.StatusCompleted
	fresh := entity.NewJob("new", "tone", 1, time.Now().UTC())
	fresh.Status = entity.StatusCompleted
	store.add(stale)
	store.add(fresh)

	cleanup := service.NewCleanupService(store, 24*time.Hour, zerolog.Nop())
	sw := worker.NewSweeper(cleanup, service.StrategyStatus, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.get(stale.TrackingID); !ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := store.get(stale.TrackingID); ok {
		t.Fatalf("stale job survived the sweep")
	}
	if _, ok := store.get(fresh.TrackingID); !ok {
		t.Fatalf("fresh job must not be swept")
	}
}
