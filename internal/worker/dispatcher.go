package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrDispatcherClosed = errors.New("dispatcher is shutting down")

// Dispatcher runs pipelines on in-process goroutines. It satisfies
// service.JobQueue so the API can hand jobs to it directly when no Redis
// queue is configured. Priority is not honoured here.
type Dispatcher struct {
	processor JobProcessor
	log       zerolog.Logger
	workers   int

	ch     chan string
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithDispatchWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithBacklog(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.ch = make(chan string, n)
		}
	}
}

func NewDispatcher(processor JobProcessor, log zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		processor: processor,
		log:       log.With().Str("component", "dispatcher").Logger(),
		workers:   4,
		ch:        make(chan string, 256),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(n int) {
			defer d.wg.Done()
			for jobID := range d.ch {
				// not tied to the submitting request
				if err := d.processor.Process(context.Background(), jobID); err != nil {
					d.log.Error().Int("worker", n).Str("job_id", jobID).Err(err).Msg("process job error")
				}
			}
		}(i + 1)
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, jobID string, _ int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.ch <- jobID:
		return nil
	default:
	}
	d.log.Warn().Str("job_id", jobID).Msg("backlog full, applying backpressure")
	select {
	case d.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.log.Warn().Msg("shutdown interrupted by context")
	case <-done:
		d.log.Info().Msg("dispatcher drained")
	}
}
