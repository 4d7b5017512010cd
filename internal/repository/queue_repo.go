package repository

import (
	"context"
	"time"
)

// JobQueue defines the interface for the "generate data feed" topic.
type JobQueue interface {
	// Push adds a job id to the end of the topic.
	Push(ctx context.Context, jobID string) error
	// Pop removes and returns the oldest job id, waiting at most timeout.
	// ErrQueueEmpty is returned when nothing arrived in time.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	// Size returns the current number of waiting jobs.
	Size(ctx context.Context) (int64, error)
}
