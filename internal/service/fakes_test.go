package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"blog-job-service/internal/entity"
)

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job

	createErr error
	listErr   error
	// listOK lets this many List calls succeed before listErr applies; 0 means none
	listOK    int
	listCalls int
	deleteErr map[uuid.UUID]error
	deletes   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]entity.Job{}, deleteErr: map[uuid.UUID]error{}}
}

func (r *fakeRepo) put(j entity.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.TrackingID] = j
}

func (r *fakeRepo) Create(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.jobs[job.TrackingID]; ok {
		return entity.ErrAlreadyExists
	}
	r.jobs[job.TrackingID] = *job
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &j, nil
}

func (r *fakeRepo) Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if err := patch.Apply(&j, time.Now().UTC()); err != nil {
		return nil, err
	}
	r.jobs[id] = j
	return &j, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if err := r.deleteErr[id]; err != nil {
		return false, err
	}
	if _, ok := r.jobs[id]; !ok {
		return false, nil
	}
	delete(r.jobs, id)
	return true, nil
}

func (r *fakeRepo) List(ctx context.Context) ([]entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil && r.listCalls > r.listOK {
		return nil, r.listErr
	}
	out := make([]entity.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

type fakeQueue struct {
	enqueuedIDs        []string
	enqueuedPriorities []int
	enqueueErr         error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return nil
}

var errBoom = errors.New("boom")
