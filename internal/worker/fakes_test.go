package worker_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/events"
	"blog-job-service/internal/stage"
)

type snapshot struct {
	status   entity.JobStatus
	progress int
	message  string
}

// memStore is a JobStore that keeps every applied state for assertions.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]entity.Job
	history map[uuid.UUID][]snapshot

	updateErr error
}

func newMemStore() *memStore {
	return &memStore{jobs: map[uuid.UUID]entity.Job{}, history: map[uuid.UUID][]snapshot{}}
}

func (s *memStore) add(j *entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.TrackingID] = *j
	s.history[j.TrackingID] = append(s.history[j.TrackingID], snapshot{j.Status, j.Progress, j.Message})
}

func (s *memStore) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *memStore) get(id uuid.UUID) (entity.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *memStore) trail(id uuid.UUID) []snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]snapshot(nil), s.history[id]...)
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &j, nil
}

func (s *memStore) Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if err := patch.Apply(&j, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.jobs[id] = j
	s.history[id] = append(s.history[id], snapshot{j.Status, j.Progress, j.Message})
	return &j, nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func draftOf(n int) stage.Draft {
	return stage.Draft{Content: words(n), WordCount: n}
}

// fakeStages implements every stage interface with overridable behaviour
// and call counters.
type fakeStages struct {
	mu    sync.Mutex
	calls map[string]int

	title   string
	draft   func(ctx context.Context) (stage.Draft, error)
	evals   []stage.Evaluation
	evalErr error
	rewrite func(ctx context.Context) (stage.Draft, error)
	query   string
	images  []string
}

func newFakeStages() *fakeStages {
	return &fakeStages{
		calls:   map[string]int{},
		title:   "Ten Ways AI Helps Clinics",
		draft:   func(context.Context) (stage.Draft, error) { return draftOf(600), nil },
		evals:   []stage.Evaluation{{Score: 9, Review: "strong"}},
		rewrite: func(context.Context) (stage.Draft, error) { return draftOf(650), nil },
		query:   "clinic robots",
		images:  []string{"https://img/1.jpg", "https://img/2.jpg"},
	}
}

func (f *fakeStages) bundle() stage.Providers {
	return stage.Providers{Topics: f, Drafter: f, Evaluator: f, Rewriter: f, Images: f}
}

func (f *fakeStages) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStages) hit(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeStages) SelectTopic(ctx context.Context, idea string) (string, error) {
	f.hit("topic")
	return f.title, nil
}

func (f *fakeStages) Draft(ctx context.Context, title, tone string) (stage.Draft, error) {
	f.hit("draft")
	return f.draft(ctx)
}

func (f *fakeStages) Evaluate(ctx context.Context, content, tone string) (stage.Evaluation, error) {
	n := f.hit("evaluate")
	if f.evalErr != nil {
		return stage.Evaluation{}, f.evalErr
	}
	if n > len(f.evals) {
		return f.evals[len(f.evals)-1], nil
	}
	return f.evals[n-1], nil
}

func (f *fakeStages) Rewrite(ctx context.Context, draft, review, tone, title string) (stage.Draft, error) {
	f.hit("rewrite")
	return f.rewrite(ctx)
}

func (f *fakeStages) ImageQuery(ctx context.Context, title, content string) (string, error) {
	f.hit("image_query")
	return f.query, nil
}

func (f *fakeStages) SearchImages(ctx context.Context, query string) ([]string, error) {
	f.hit("image_search")
	return f.images, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, ev events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *memStore) List(ctx context.Context) ([]entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}
