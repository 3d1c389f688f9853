package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"blog-job-service/internal/service"
)

// JobProcessor runs one job by id.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// Pool claims job ids from the queue and fans them out to N workers.
type Pool struct {
	queue      service.Queue
	processor  JobProcessor
	workers    int
	claimDelay time.Duration
	log        zerolog.Logger
}

func NewPool(queue service.Queue, processor JobProcessor, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log.With().Str("component", "pool").Logger(),
	}
}

// Run blocks until ctx is done and every in-flight job has finished.
// Jobs run on a context detached from ctx, so shutdown drains instead of
// cutting pipelines off mid-stage.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")

	jobCh := make(chan string)
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for jobID := range jobCh {
				p.handle(jobCtx, n, jobID)
			}
		}(i + 1)
	}

	p.listen(ctx, jobCh)
	close(jobCh)
	wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

func (p *Pool) listen(ctx context.Context, jobCh chan<- string) {
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.Error().Err(err).Msg("claim failed")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			continue
		}
		select {
		case jobCh <- jobID:
		case <-ctx.Done():
			// leave it claimed; the reaper hands it back
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, n int, jobID string) {
	err := p.processor.Process(ctx, jobID)
	if errors.Is(err, ErrNotClaimed) {
		p.log.Warn().Int("worker", n).Str("job_id", jobID).Err(err).Msg("left for reaper")
		return
	}
	if err != nil {
		p.log.Error().Int("worker", n).Str("job_id", jobID).Err(err).Msg("process job error")
	}

	// the job row is terminal (or not ours), so the claim can go
	if ackErr := p.queue.Ack(ctx, jobID); ackErr != nil {
		p.log.Error().Int("worker", n).Str("job_id", jobID).Err(ackErr).Msg("ack failed")
	}
}
