package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/metrics"
	"go.uber.org/zap"
)

const (
	defaultPopTimeout = 5 * time.Second
	failureBackoff    = time.Second
)

// DataFeedGeneration is the unit of work a job runs.
type DataFeedGeneration interface {
	GenerateDataFeed(ctx context.Context) (*entity.GenerationStats, error)
}

// JobExecutor submits generation jobs to the topic and runs them one at a time.
type JobExecutor struct {
	queue      repository.JobQueue
	results    repository.JobResultRepository
	feed       DataFeedGeneration
	metrics    *metrics.Metrics
	logger     *zap.Logger
	popTimeout time.Duration
}

func NewJobExecutor(
	queue repository.JobQueue,
	results repository.JobResultRepository,
	feed DataFeedGeneration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *JobExecutor {
	return &JobExecutor{
		queue:      queue,
		results:    results,
		feed:       feed,
		metrics:    m,
		logger:     logger,
		popTimeout: defaultPopTimeout,
	}
}

// Submit enqueues a generation job and returns its id.
func (e *JobExecutor) Submit(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := e.results.Save(ctx, &entity.JobResult{
		ID:         id,
		State:      entity.JobQueued,
		EnqueuedAt: time.Now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("save queued job: %w", err)
	}
	if err := e.queue.Push(ctx, id); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	e.observeQueue(ctx)
	e.logger.Info("generation job is queued", zap.String("job_id", id))
	return id, nil
}

// Latest returns the most recently updated job.
func (e *JobExecutor) Latest(ctx context.Context) (*entity.JobResult, error) {
	return e.results.Latest(ctx)
}

// Get returns the job with id.
func (e *JobExecutor) Get(ctx context.Context, id string) (*entity.JobResult, error) {
	return e.results.Get(ctx, id)
}

// Run processes jobs until ctx is done. A job that has started always runs to
// the end; cancellation only takes effect between jobs.
func (e *JobExecutor) Run(ctx context.Context) {
	e.logger.Info("job executor started")
	for {
		if ctx.Err() != nil {
			e.logger.Info("job executor stopped")
			return
		}
		if _, err := e.ProcessNext(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("failed to process generation job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(failureBackoff):
			}
		}
	}
}

// ProcessNext waits for one job and runs it. It returns nil, nil when no job
// arrived in time.
func (e *JobExecutor) ProcessNext(ctx context.Context) (*entity.JobResult, error) {
	id, err := e.queue.Pop(ctx, e.popTimeout)
	if errors.Is(err, repository.ErrQueueEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}
	e.observeQueue(ctx)

	job, err := e.results.Get(ctx, id)
	if err != nil {
		job = &entity.JobResult{ID: id, EnqueuedAt: time.Now().UTC()}
	}

	// Results are saved even when ctx is cancelled.
	saveCtx := context.WithoutCancel(ctx)
	if ctx.Err() != nil {
		return e.finish(saveCtx, job, entity.JobCancelled, "cancelled before start")
	}

	job.State = entity.JobRunning
	if err := e.results.Save(saveCtx, job); err != nil {
		e.logger.Warn("failed to save running job state", zap.String("job_id", id), zap.Error(err))
	}
	e.logger.Info("generation job started", zap.String("job_id", id))

	stats, err := e.feed.GenerateDataFeed(saveCtx)
	if err != nil {
		e.logger.Warn("generation job failed", zap.String("job_id", id), zap.Error(err))
		return e.finish(saveCtx, job, entity.JobFailed, err.Error())
	}
	return e.finish(saveCtx, job, entity.JobSucceeded,
		fmt.Sprintf("%d broken links reported in %d rows", stats.BrokenLinks.Total(), stats.ReportedRows))
}

func (e *JobExecutor) finish(ctx context.Context, job *entity.JobResult, state entity.JobState, msg string) (*entity.JobResult, error) {
	now := time.Now().UTC()
	job.State = state
	job.Message = msg
	job.FinishedAt = &now
	if e.metrics != nil {
		e.metrics.JobsTotal.WithLabelValues(string(state)).Inc()
	}
	if err := e.results.Save(ctx, job); err != nil {
		return job, fmt.Errorf("save job result: %w", err)
	}
	e.logger.Info("generation job finished", zap.String("job_id", job.ID), zap.String("state", string(state)))
	return job, nil
}

func (e *JobExecutor) observeQueue(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	if size, err := e.queue.Size(ctx); err == nil {
		e.metrics.JobsInQueue.Set(float64(size))
	}
}
