package gormstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/repository/gormstore"
)

func openTestRepo(t *testing.T) *gormstore.JobRepository {
	t.Helper()
	return gormstore.NewJobRepository(openTestDB(t))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gormstore.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gormstore.Migrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestJobRepository_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	job := entity.NewJob("AI in healthcare", "Professional", 2, time.Now().UTC())
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, job.TrackingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TrackingID != job.TrackingID || got.Idea != job.Idea || got.Tone != job.Tone {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.Status != entity.StatusInit || got.Progress != 0 || got.Priority != 2 {
		t.Fatalf("unexpected initial state: status=%s progress=%d priority=%d", got.Status, got.Progress, got.Priority)
	}
	if got.Rating != nil || got.Timestamp != nil {
		t.Fatalf("fresh job must not carry result or failure fields: %+v", got)
	}
}

func TestJobRepository_CreateDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	job := entity.NewJob("idea", "tone", 1, time.Now().UTC())
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, job); !errors.Is(err, entity.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestJobRepository_UpdateMergesAndPreserves(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	job := entity.NewJob("idea", "Casual", 1, time.Now().UTC())
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := repo.Update(ctx, job.TrackingID, entity.JobUpdate{
		Status:   entity.StatusPtr(entity.StatusInProgress),
		Progress: entity.IntPtr(20),
		Title:    entity.StringPtr("Ten Ideas"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = repo.Update(ctx, job.TrackingID, entity.JobUpdate{
		Progress: entity.IntPtr(40),
		Message:  entity.StringPtr("Draft written"),
	})
	if err != nil {
		t.Fatalf("update 2: %v", err)
	}

	got, err := repo.GetByID(ctx, job.TrackingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Ten Ideas" || got.Tone != "Casual" || got.Progress != 40 || got.Message != "Draft written" {
		t.Fatalf("merge lost fields: %+v", got)
	}
	if got.UpdatedAt.Before(job.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %v < %v", got.UpdatedAt, job.UpdatedAt)
	}
}

func TestJobRepository_UpdateMissingIsNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.Update(context.Background(), uuid.New(), entity.JobUpdate{Progress: entity.IntPtr(10)})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRepository_CompleteStoresResult(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	job := entity.NewJob("idea", "tone", 1, time.Now().UTC())
	_ = repo.Create(ctx, job)
	_, _ = repo.Update(ctx, job.TrackingID, entity.JobUpdate{Status: entity.StatusPtr(entity.StatusInProgress)})

	_, err := repo.Update(ctx, job.TrackingID, entity.JobUpdate{
		Status:    entity.StatusPtr(entity.StatusCompleted),
		Progress:  entity.IntPtr(100),
		Title:     entity.StringPtr("T"),
		Content:   entity.StringPtr("body"),
		WordCount: entity.IntPtr(640),
		Images:    []string{"https://img.example/a.jpg", "https://img.example/b.jpg"},
		Rating:    &entity.Rating{Score: 8.5, Review: "solid"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := repo.GetByID(ctx, job.TrackingID)
	if got.Status != entity.StatusCompleted || len(got.Images) != 2 || got.Rating == nil || got.Rating.Score != 8.5 {
		t.Fatalf("unexpected completed job: %+v", got)
	}

	// terminal: no transition leaves it
	_, err = repo.Update(ctx, job.TrackingID, entity.JobUpdate{Status: entity.StatusPtr(entity.StatusFailed)})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestJobRepository_DeleteAndListOrder(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		j := entity.NewJob(fmt.Sprintf("idea %d", i), "tone", 1, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, j.TrackingID)
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 3 || jobs[0].TrackingID != ids[2] || jobs[2].TrackingID != ids[0] {
		t.Fatalf("expected newest first, got %v", jobs)
	}

	deleted, err := repo.Delete(ctx, ids[1])
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, ids[1])
	if err != nil || deleted {
		t.Fatalf("second delete must be a no-op: deleted=%v err=%v", deleted, err)
	}
	if _, err := repo.GetByID(ctx, ids[1]); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestJobRepository_UpdateOfVanishedRowIsNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := gormstore.NewJobRepository(db)

	job := entity.NewJob("idea", "tone", 1, time.Now().UTC())
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// delete the row between the read and the write of Update
	err := db.Callback().Update().Before("gorm:update").Register("test:vanish", func(tx *gorm.DB) {
		tx.Session(&gorm.Session{NewDB: true}).Exec("DELETE FROM blog_jobs WHERE tracking_id = ?", job.TrackingID.String())
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = repo.Update(ctx, job.TrackingID, entity.JobUpdate{
		Status:   entity.StatusPtr(entity.StatusInProgress),
		Progress: entity.IntPtr(20),
	})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
