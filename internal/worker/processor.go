package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/events"
	"blog-job-service/internal/metrics"
	"blog-job-service/internal/stage"
)

// ErrNotClaimed means the job could not be moved to in_progress because the
// store failed. The queue entry should stay claimed so the reaper retries it.
var ErrNotClaimed = errors.New("job not claimed")

type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error)
}

type Notifier interface {
	Publish(ctx context.Context, ev events.Event) error
}

const (
	stageTopic    = "topic"
	stageDraft    = "draft"
	stageEvaluate = "evaluate"
	stageRewrite  = "rewrite"
	stageQuery    = "image_query"
	stageImages   = "image_search"
	stageStore    = "store"
)

var stageLabels = map[string]string{
	stageTopic:    "Topic selection",
	stageDraft:    "Content writing",
	stageEvaluate: "Content evaluation",
	stageRewrite:  "Content rewriting",
	stageQuery:    "Image search",
	stageImages:   "Image search",
	stageStore:    "Job update",
}

// PipelineError aborts a run. Type is what ends up in the job's error_type.
type PipelineError struct {
	Type  entity.ErrorType
	Stage string
	Err   error
}

func (e *PipelineError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *PipelineError) Unwrap() error { return e.Err }

// Message is the human-readable line stored in the job's message field.
func (e *PipelineError) Message() string {
	if e.Type == entity.ErrorTypeRace {
		return "Job was deleted while processing"
	}
	label, ok := stageLabels[e.Stage]
	if !ok {
		label = e.Stage
	}
	return fmt.Sprintf("%s failed: %v", label, e.Err)
}

func stageFailure(stageName, format string, args ...any) *PipelineError {
	return &PipelineError{Type: entity.ErrorTypeStage, Stage: stageName, Err: fmt.Errorf(format, args...)}
}

type Thresholds struct {
	MinDraftWords int
	TargetWords   int
	MinScore      float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinDraftWords: 100, TargetWords: 500, MinScore: 8}
}

type Processor struct {
	store    JobStore
	stages   stage.Providers
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	stageTimeout time.Duration
	retries      int
	retryBackoff time.Duration
	limits       Thresholds
}

type ProcessorOption func(*Processor)

// WithStageTimeout bounds every provider call; 0 disables the bound.
func WithStageTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.stageTimeout = d }
}

// WithRetries re-attempts a provider call that returned an error. Output that
// fails validation is never retried.
func WithRetries(n int, backoff time.Duration) ProcessorOption {
	return func(p *Processor) {
		if n >= 0 {
			p.retries = n
		}
		p.retryBackoff = backoff
	}
}

func WithThresholds(t Thresholds) ProcessorOption {
	return func(p *Processor) { p.limits = t }
}

func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(store JobStore, stages stage.Providers, log zerolog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:        store,
		stages:       stages,
		notifier:     events.Nop{},
		log:          log.With().Str("component", "processor").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
		stageTimeout: 2 * time.Minute,
		retryBackoff: time.Second,
		limits:       DefaultThresholds(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the pipeline for one job id. It returns nil when the job was
// handled (completed, failed, or skipped because someone else owns it) and
// ErrNotClaimed when the job should be retried later.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		p.log.Error().Str("job_id", jobID).Err(err).Msg("bad job id")
		return nil
	}
	log := p.log.With().Str("job_id", jobID).Logger()

	job, err := p.store.Update(ctx, id, entity.JobUpdate{
		Expect:  entity.StatusPtr(entity.StatusInit),
		Status:  entity.StatusPtr(entity.StatusInProgress),
		Message: entity.StringPtr("Selecting topic"),
	})
	switch {
	case errors.Is(err, entity.ErrNotFound):
		log.Warn().Msg("job gone before start, skipping")
		return nil
	case errors.Is(err, entity.ErrStatusConflict):
		log.Info().Msg("job already claimed, skipping")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("claim failed")
		return fmt.Errorf("%w: %v", ErrNotClaimed, err)
	}

	log.Info().Str("status", string(entity.StatusInProgress)).Msg("pipeline started")

	final, perr := p.run(ctx, job, log)
	if perr != nil {
		final = p.fail(ctx, id, perr, log)
		log.Warn().
			Str("status", string(entity.StatusFailed)).
			Str("stage", perr.Stage).
			Str("error_type", string(perr.Type)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Err(perr.Err).
			Msg("pipeline failed")
		metrics.JobsFinished.WithLabelValues(string(entity.StatusFailed), string(perr.Type)).Inc()
	} else if final == nil {
		log.Error().Int64("duration_ms", time.Since(start).Milliseconds()).Msg("pipeline finished but completion was not stored")
	} else {
		log.Info().
			Str("status", string(entity.StatusCompleted)).
			Int("word_count", final.WordCount).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("pipeline completed")
		metrics.JobsFinished.WithLabelValues(string(entity.StatusCompleted), "").Inc()
	}

	if final != nil {
		p.notify(ctx, final, log)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, job *entity.Job, log zerolog.Logger) (*entity.Job, *PipelineError) {
	id := job.TrackingID

	// 1. topic
	var title string
	if err := p.call(ctx, stageTopic, log, func(ctx context.Context) (err error) {
		title, err = p.stages.Topics.SelectTopic(ctx, job.Idea)
		return err
	}); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, stageFailure(stageTopic, "empty title")
	}
	if err := p.progress(ctx, id, 20, "Topic selected: "+title, log); err != nil {
		return nil, err
	}

	// 2. draft
	var draft stage.Draft
	if err := p.call(ctx, stageDraft, log, func(ctx context.Context) (err error) {
		draft, err = p.stages.Drafter.Draft(ctx, title, job.Tone)
		return err
	}); err != nil {
		return nil, err
	}
	draft, perr := p.checkDraft(stageDraft, draft, p.limits.MinDraftWords)
	if perr != nil {
		return nil, perr
	}
	if err := p.progress(ctx, id, 40, fmt.Sprintf("Draft written (%d words)", draft.WordCount), log); err != nil {
		return nil, err
	}

	// 3. evaluation
	eval, perr := p.evaluate(ctx, draft.Content, job.Tone, log)
	if perr != nil {
		return nil, perr
	}
	if err := p.progress(ctx, id, 60, fmt.Sprintf("Content evaluated (score %.1f)", eval.Score), log); err != nil {
		return nil, err
	}

	// 4. rewrite, exactly once and only when needed
	if eval.Score < p.limits.MinScore || draft.WordCount < p.limits.TargetWords {
		log.Info().Float64("score", eval.Score).Int("word_count", draft.WordCount).Msg("rewrite needed")

		if err := p.ensureExists(ctx, id, stageRewrite, log); err != nil {
			return nil, err
		}
		if err := p.progress(ctx, id, 70, "Improving content", log); err != nil {
			return nil, err
		}

		metrics.Rewrites.Inc()
		var rewritten stage.Draft
		if err := p.call(ctx, stageRewrite, log, func(ctx context.Context) (err error) {
			rewritten, err = p.stages.Rewriter.Rewrite(ctx, draft.Content, eval.Review, job.Tone, title)
			return err
		}); err != nil {
			return nil, err
		}
		rewritten, perr = p.checkDraft(stageRewrite, rewritten, p.limits.MinDraftWords)
		if perr != nil {
			return nil, perr
		}
		if rewritten.WordCount < p.limits.TargetWords {
			return nil, stageFailure(stageRewrite, "rewritten draft has %d words, need at least %d", rewritten.WordCount, p.limits.TargetWords)
		}

		if err := p.ensureExists(ctx, id, stageRewrite, log); err != nil {
			return nil, err
		}

		eval, perr = p.evaluate(ctx, rewritten.Content, job.Tone, log)
		if perr != nil {
			return nil, perr
		}
		draft = rewritten
		if err := p.progress(ctx, id, 80, fmt.Sprintf("Content improved (score %.1f)", eval.Score), log); err != nil {
			return nil, err
		}
	} else {
		if err := p.progress(ctx, id, 70, "Content quality acceptable", log); err != nil {
			return nil, err
		}
	}

	// 5. images
	images, perr := p.findImages(ctx, title, draft.Content, log)
	if perr != nil {
		return nil, perr
	}
	if err := p.progress(ctx, id, 90, fmt.Sprintf("Found %d images", len(images)), log); err != nil {
		return nil, err
	}

	// 6. completion
	done, err := p.store.Update(ctx, id, entity.JobUpdate{
		Status:    entity.StatusPtr(entity.StatusCompleted),
		Progress:  entity.IntPtr(100),
		Message:   entity.StringPtr("Blog post completed"),
		Title:     entity.StringPtr(title),
		Content:   entity.StringPtr(draft.Content),
		WordCount: entity.IntPtr(draft.WordCount),
		Images:    images,
		Rating:    &entity.Rating{Score: eval.Score, Review: eval.Review},
	})
	if err != nil {
		if perr := p.classifyStoreErr(err, stageStore); perr != nil {
			return nil, perr
		}
		log.Error().Err(err).Msg("could not persist completed job")
		return nil, nil
	}
	return done, nil
}

// call runs one provider call under the stage timeout, retrying provider
// errors up to the configured count. Malformed replies fail at once.
func (p *Processor) call(ctx context.Context, stageName string, log zerolog.Logger, fn func(context.Context) error) *PipelineError {
	attempts := p.retries + 1
	var lastErr error
	timedOut := false

	for attempt := 1; attempt <= attempts; attempt++ {
		sctx, cancel := ctx, context.CancelFunc(func() {})
		if p.stageTimeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		}

		t0 := time.Now()
		err := fn(sctx)
		metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(t0).Seconds())
		timedOut = errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			log.Debug().Str("stage", stageName).Int64("duration_ms", time.Since(t0).Milliseconds()).Msg("stage ok")
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, stage.ErrMalformedReply) {
			break
		}
		if attempt < attempts {
			log.Warn().Str("stage", stageName).Int("attempt", attempt).Err(err).Msg("stage call failed, retrying")
			select {
			case <-time.After(p.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
			}
		}
	}

	if timedOut {
		return &PipelineError{
			Type:  entity.ErrorTypeTimeout,
			Stage: stageName,
			Err:   fmt.Errorf("timed out after %s", p.stageTimeout),
		}
	}
	return &PipelineError{Type: entity.ErrorTypeStage, Stage: stageName, Err: lastErr}
}

func (p *Processor) checkDraft(stageName string, d stage.Draft, minWords int) (stage.Draft, *PipelineError) {
	d.Content = strings.TrimSpace(d.Content)
	if d.Content == "" {
		return d, stageFailure(stageName, "empty content")
	}
	// reported counts are not trusted
	d.WordCount = stage.CountWords(d.Content)
	if d.WordCount < minWords {
		return d, stageFailure(stageName, "draft has %d words, need at least %d", d.WordCount, minWords)
	}
	return d, nil
}

func (p *Processor) evaluate(ctx context.Context, content, tone string, log zerolog.Logger) (stage.Evaluation, *PipelineError) {
	var eval stage.Evaluation
	if err := p.call(ctx, stageEvaluate, log, func(ctx context.Context) (err error) {
		eval, err = p.stages.Evaluator.Evaluate(ctx, content, tone)
		return err
	}); err != nil {
		return eval, err
	}
	if math.IsNaN(eval.Score) || math.IsInf(eval.Score, 0) {
		return eval, stageFailure(stageEvaluate, "score is not a number")
	}
	return eval, nil
}

func (p *Processor) findImages(ctx context.Context, title, content string, log zerolog.Logger) ([]string, *PipelineError) {
	var query string
	if err := p.call(ctx, stageQuery, log, func(ctx context.Context) (err error) {
		query, err = p.stages.Images.ImageQuery(ctx, title, content)
		return err
	}); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, stageFailure(stageQuery, "empty search query")
	}

	var found []string
	if err := p.call(ctx, stageImages, log, func(ctx context.Context) (err error) {
		found, err = p.stages.Images.SearchImages(ctx, query)
		return err
	}); err != nil {
		return nil, err
	}

	images := make([]string, 0, len(found))
	for _, u := range found {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	if len(images) == 0 {
		return nil, stageFailure(stageImages, "no images found for %q", query)
	}
	return images, nil
}

// progress persists a checkpoint. A vanished record aborts the run; other
// store errors are logged and the run goes on.
func (p *Processor) progress(ctx context.Context, id uuid.UUID, pct int, msg string, log zerolog.Logger) *PipelineError {
	_, err := p.store.Update(ctx, id, entity.JobUpdate{
		Progress: entity.IntPtr(pct),
		Message:  entity.StringPtr(msg),
	})
	if err == nil {
		log.Debug().Int("progress", pct).Msg(msg)
		return nil
	}
	if perr := p.classifyStoreErr(err, stageStore); perr != nil {
		return perr
	}
	log.Error().Err(err).Int("progress", pct).Msg("progress update failed")
	return nil
}

func (p *Processor) ensureExists(ctx context.Context, id uuid.UUID, stageName string, log zerolog.Logger) *PipelineError {
	_, err := p.store.GetByID(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, entity.ErrNotFound) {
		return &PipelineError{Type: entity.ErrorTypeRace, Stage: stageName, Err: err}
	}
	log.Error().Err(err).Str("stage", stageName).Msg("existence check failed")
	return nil
}

// classifyStoreErr turns store errors that mean "the record is not ours any
// more" into a race; nil means the error is a plain persistence problem.
func (p *Processor) classifyStoreErr(err error, stageName string) *PipelineError {
	if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrInvalidTransition) {
		return &PipelineError{Type: entity.ErrorTypeRace, Stage: stageName, Err: err}
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, id uuid.UUID, perr *PipelineError, log zerolog.Logger) *entity.Job {
	now := p.now()
	job, err := p.store.Update(ctx, id, entity.JobUpdate{
		Status:    entity.StatusPtr(entity.StatusFailed),
		Message:   entity.StringPtr(perr.Message()),
		Error:     entity.StringPtr(perr.Err.Error()),
		ErrorType: entity.ErrorTypePtr(perr.Type),
		Timestamp: &now,
	})
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			log.Info().Msg("job record gone, failure not recorded")
		} else {
			log.Error().Err(err).Msg("could not record failure")
		}
		return nil
	}
	return job
}

func (p *Processor) notify(ctx context.Context, job *entity.Job, log zerolog.Logger) {
	ev, ok := events.FromJob(job, p.now())
	if !ok {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.notifier.Publish(nctx, ev); err != nil {
		log.Warn().Err(err).Str("kind", ev.Kind).Msg("publish event failed")
	}
}
