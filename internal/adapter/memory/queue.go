package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

// JobQueue is a process-local generate topic backed by a buffered channel.
type JobQueue struct {
	jobs chan string
}

func NewJobQueue(capacity int) *JobQueue {
	return &JobQueue{jobs: make(chan string, capacity)}
}

func (q *JobQueue) Push(ctx context.Context, jobID string) error {
	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *JobQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.jobs:
		return id, nil
	case <-timer.C:
		return "", repository.ErrQueueEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *JobQueue) Size(_ context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

// JobResultRepo keeps job results in a map.
type JobResultRepo struct {
	mu      sync.RWMutex
	results map[string]entity.JobResult
	latest  string
}

func NewJobResultRepo() *JobResultRepo {
	return &JobResultRepo{results: make(map[string]entity.JobResult)}
}

func (r *JobResultRepo) Save(_ context.Context, result *entity.JobResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.ID] = *result
	r.latest = result.ID
	return nil
}

func (r *JobResultRepo) Get(_ context.Context, id string) (*entity.JobResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &res, nil
}

func (r *JobResultRepo) Latest(ctx context.Context) (*entity.JobResult, error) {
	r.mu.RLock()
	latest := r.latest
	r.mu.RUnlock()
	return r.Get(ctx, latest)
}
