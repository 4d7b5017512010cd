package repository

import (
	"context"

	"github.com/user/linkchecker-service/internal/entity"
)

// JobResultRepository keeps the state of generation jobs.
type JobResultRepository interface {
	// Save stores or replaces the result of a job and marks it as the latest one.
	Save(ctx context.Context, result *entity.JobResult) error
	// Get returns the result of the job with id or ErrJobNotFound.
	Get(ctx context.Context, id string) (*entity.JobResult, error)
	// Latest returns the most recently saved job result or ErrJobNotFound.
	Latest(ctx context.Context) (*entity.JobResult, error)
}
