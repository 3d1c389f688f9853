package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/metrics"
)

type Strategy string

const (
	// StrategyAll selects every job older than the age threshold.
	StrategyAll Strategy = "all"
	// StrategyStatus selects completed, failed and abandoned in-progress
	// jobs older than the age threshold.
	StrategyStatus Strategy = "status"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAll, StrategyStatus:
		return Strategy(s), nil
	case "":
		return StrategyStatus, nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown cleanup type %q (want all or status)", s)}
}

// CleanupStore is the slice of the JobStore cleanup needs.
type CleanupStore interface {
	List(ctx context.Context) ([]entity.Job, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type Stats struct {
	Total       int                      `json:"total"`
	Old         int                      `json:"old"`
	ByStatus    map[entity.JobStatus]int `json:"by_status"`
	OldByStatus map[entity.JobStatus]int `json:"old_by_status"`
}

type Candidate struct {
	TrackingID uuid.UUID        `json:"tracking_id"`
	Status     entity.JobStatus `json:"status"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Age        string           `json:"age"`
}

type Preview struct {
	Strategy    Strategy    `json:"type"`
	MaxAge      string      `json:"max_age"`
	WouldDelete []Candidate `json:"would_delete"`
	Stats       Stats       `json:"stats"`
}

type Result struct {
	Strategy    Strategy    `json:"type"`
	MaxAge      string      `json:"max_age"`
	Deleted     int         `json:"deleted"`
	DeletedJobs []Candidate `json:"deleted_jobs"`
	Failed      int         `json:"failed,omitempty"`
	StatsBefore Stats       `json:"stats_before"`
	StatsAfter  Stats       `json:"stats_after"`
}

type CleanupService struct {
	store  CleanupStore
	maxAge time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

type CleanupOption func(*CleanupService)

func WithCleanupClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) { s.now = now }
}

func NewCleanupService(store CleanupStore, maxAge time.Duration, log zerolog.Logger, opts ...CleanupOption) *CleanupService {
	s := &CleanupService{
		store:  store,
		maxAge: maxAge,
		log:    log.With().Str("component", "cleanup").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *CleanupService) MaxAge() time.Duration { return s.maxAge }

func (s *CleanupService) isOld(j entity.Job, now time.Time) bool {
	return now.Sub(j.UpdatedAt) > s.maxAge
}

func (s *CleanupService) selects(strategy Strategy, j entity.Job, now time.Time) bool {
	if !s.isOld(j, now) {
		return false
	}
	if strategy == StrategyAll {
		return true
	}
	switch j.Status {
	case entity.StatusCompleted, entity.StatusFailed:
		return true
	case entity.StatusInProgress:
		// no update for longer than maxAge: the pipeline died or hung
		return true
	}
	return false
}

func (s *CleanupService) stats(jobs []entity.Job, now time.Time) Stats {
	st := Stats{
		Total:       len(jobs),
		ByStatus:    map[entity.JobStatus]int{},
		OldByStatus: map[entity.JobStatus]int{},
	}
	for _, j := range jobs {
		st.ByStatus[j.Status]++
		if s.isOld(j, now) {
			st.Old++
			st.OldByStatus[j.Status]++
		}
	}
	return st
}

func (s *CleanupService) candidates(strategy Strategy, jobs []entity.Job, now time.Time) []Candidate {
	out := make([]Candidate, 0)
	for _, j := range jobs {
		if !s.selects(strategy, j, now) {
			continue
		}
		out = append(out, Candidate{
			TrackingID: j.TrackingID,
			Status:     j.Status,
			UpdatedAt:  j.UpdatedAt,
			Age:        now.Sub(j.UpdatedAt).Round(time.Second).String(),
		})
	}
	return out
}

// Preview reports what Execute would delete without touching the store.
func (s *CleanupService) Preview(ctx context.Context, strategy Strategy) (*Preview, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	now := s.now()
	p := &Preview{
		Strategy:    strategy,
		MaxAge:      s.maxAge.String(),
		WouldDelete: s.candidates(strategy, jobs, now),
		Stats:       s.stats(jobs, now),
	}
	s.log.Info().
		Str("strategy", string(strategy)).
		Int("would_delete", len(p.WouldDelete)).
		Int("total", p.Stats.Total).
		Msg("cleanup dry run")
	return p, nil
}

// Execute deletes every job the strategy selects. Records that vanish
// between listing and deleting are logged and not counted. If only the
// final listing fails, the partial result is returned with the error.
func (s *CleanupService) Execute(ctx context.Context, strategy Strategy) (*Result, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	now := s.now()
	res := &Result{
		Strategy:    strategy,
		MaxAge:      s.maxAge.String(),
		DeletedJobs: make([]Candidate, 0),
		StatsBefore: s.stats(jobs, now),
	}

	for _, c := range s.candidates(strategy, jobs, now) {
		deleted, err := s.store.Delete(ctx, c.TrackingID)
		if err != nil {
			res.Failed++
			s.log.Error().Err(err).Str("job_id", c.TrackingID.String()).Msg("cleanup delete failed")
			continue
		}
		if !deleted {
			s.log.Warn().Str("job_id", c.TrackingID.String()).Msg("cleanup: job already gone")
			continue
		}
		res.Deleted++
		res.DeletedJobs = append(res.DeletedJobs, c)
	}

	after, err := s.store.List(ctx)
	if err != nil {
		deleted := make([]string, 0, len(res.DeletedJobs))
		for _, c := range res.DeletedJobs {
			deleted = append(deleted, c.TrackingID.String())
		}
		metrics.CleanupDeleted.WithLabelValues(string(strategy)).Add(float64(res.Deleted))
		s.log.Error().Err(err).Strs("deleted", deleted).Msg("cleanup done, stats after unavailable")
		return res, fmt.Errorf("list jobs after cleanup: %w", err)
	}
	res.StatsAfter = s.stats(after, s.now())

	metrics.CleanupDeleted.WithLabelValues(string(strategy)).Add(float64(res.Deleted))
	s.log.Info().
		Str("strategy", string(strategy)).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Int("total_before", res.StatsBefore.Total).
		Int("total_after", res.StatsAfter.Total).
		Msg("cleanup done")
	return res, nil
}
