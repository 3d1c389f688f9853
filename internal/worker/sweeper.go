package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"blog-job-service/internal/metrics"
	"blog-job-service/internal/service"
)

// Sweeper runs the periodic housekeeping next to the pool: stale-job
// cleanup and handing abandoned queue claims back.
type Sweeper struct {
	cleanup  *service.CleanupService
	strategy service.Strategy
	interval time.Duration

	queue      service.Queue
	visibility time.Duration
	reapEvery  time.Duration

	log zerolog.Logger
}

func NewSweeper(cleanup *service.CleanupService, strategy service.Strategy, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cleanup:   cleanup,
		strategy:  strategy,
		interval:  interval,
		reapEvery: 30 * time.Second,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// WithReaper also requeues claims older than visibility.
func (s *Sweeper) WithReaper(q service.Queue, visibility time.Duration) *Sweeper {
	s.queue = q
	s.visibility = visibility
	return s
}

// Run blocks until ctx is done. A zero interval disables cleanup.
func (s *Sweeper) Run(ctx context.Context) {
	var cleanupC, reapC <-chan time.Time

	if s.cleanup != nil && s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		cleanupC = t.C
		s.log.Info().Dur("interval", s.interval).Str("strategy", string(s.strategy)).Msg("cleanup sweep enabled")
	}
	if s.queue != nil {
		t := time.NewTicker(s.reapEvery)
		defer t.Stop()
		reapC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupC:
			s.sweep(ctx)
		case <-reapC:
			s.reap(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.cleanup.Execute(ctx, s.strategy)
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup sweep failed")
		return
	}
	if res.Deleted > 0 {
		s.log.Info().Int("deleted", res.Deleted).Msg("cleanup sweep removed stale jobs")
	}
}

func (s *Sweeper) reap(ctx context.Context) {
	n, err := s.queue.RequeueStale(ctx, s.visibility)
	if err != nil {
		s.log.Error().Err(err).Msg("requeue error")
		return
	}
	if n > 0 {
		metrics.QueueRequeued.Add(float64(n))
		s.log.Info().Int64("requeued", n).Msg("requeued stale claims")
	}
}
