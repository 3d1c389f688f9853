package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/metrics"
)

const (
	maxIdeaLen = 2000
	maxToneLen = 64

	defaultPriority = 1
)

// JobRepository is the JobStore port (postgresql.JobRepository, gormstore.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context) ([]entity.Job, error)
}

// JobQueue only hands a job id to whatever runs pipelines: the Redis queue
// or the in-process dispatcher.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
}

// ValidationError reports a bad submission; the HTTP layer maps it to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type JobService struct {
	repo  JobRepository
	queue JobQueue
	log   zerolog.Logger
	now   func() time.Time
}

func NewJobService(repo JobRepository, queue JobQueue, log zerolog.Logger) *JobService {
	return &JobService{
		repo:  repo,
		queue: queue,
		log:   log.With().Str("component", "job_service").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type SubmitRequest struct {
	Idea     string
	Tone     string
	Priority *int
}

func (r SubmitRequest) validate() error {
	idea, tone := strings.TrimSpace(r.Idea), strings.TrimSpace(r.Tone)
	switch {
	case idea == "":
		return &ValidationError{Field: "idea", Reason: "is required"}
	case len(idea) > maxIdeaLen:
		return &ValidationError{Field: "idea", Reason: fmt.Sprintf("must be at most %d characters", maxIdeaLen)}
	case tone == "":
		return &ValidationError{Field: "tone", Reason: "is required"}
	case len(tone) > maxToneLen:
		return &ValidationError{Field: "tone", Reason: fmt.Sprintf("must be at most %d characters", maxToneLen)}
	}
	return nil
}

// Submit persists an Init job and hands it off. It returns as soon as the
// record exists; the pipeline runs elsewhere.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	priority := defaultPriority
	if req.Priority != nil && *req.Priority >= 0 && *req.Priority <= 2 {
		priority = *req.Priority
	}

	job := entity.NewJob(strings.TrimSpace(req.Idea), strings.TrimSpace(req.Tone), priority, s.now())
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.TrackingID.String(), priority); err != nil {
		s.log.Error().Err(err).Str("job_id", job.TrackingID.String()).Msg("enqueue failed")
		s.dropUnqueued(job)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.JobsSubmitted.WithLabelValues(strconv.Itoa(priority)).Inc()
	s.log.Info().
		Str("job_id", job.TrackingID.String()).
		Int("priority", priority).
		Str("tone", job.Tone).
		Msg("job submitted")
	return job, nil
}

// dropUnqueued removes a record no worker will ever pick up. The caller
// never saw its tracking id.
func (s *JobService) dropUnqueued(job *entity.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.repo.Delete(ctx, job.TrackingID); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.TrackingID.String()).Msg("could not remove unqueued job")
	}
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes a job record regardless of state. A running pipeline
// notices on its next existence check and stops.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return entity.ErrNotFound
	}
	s.log.Info().Str("job_id", id.String()).Msg("job deleted")
	return nil
}

// List returns jobs newest first; limit <= 0 means all.
func (s *JobService) List(ctx context.Context, limit int) ([]entity.Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
