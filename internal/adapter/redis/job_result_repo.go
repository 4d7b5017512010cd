package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

const (
	jobKeyPrefix = "linkchecker:job:"
	latestJobKey = "linkchecker:job:latest"
)

// JobResultRepoImpl stores job results as JSON strings that expire after ttl.
type JobResultRepoImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJobResultRepo(client *redis.Client, ttl time.Duration) *JobResultRepoImpl {
	return &JobResultRepoImpl{client: client, ttl: ttl}
}

func (r *JobResultRepoImpl) generateKey(id string) string {
	return jobKeyPrefix + id
}

// Save writes the result and the latest pointer in one MULTI/EXEC.
func (r *JobResultRepoImpl) Save(ctx context.Context, result *entity.JobResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.generateKey(result.ID), raw, r.ttl)
		pipe.Set(ctx, latestJobKey, result.ID, r.ttl)
		return nil
	})
	return err
}

func (r *JobResultRepoImpl) Get(ctx context.Context, id string) (*entity.JobResult, error) {
	raw, err := r.client.Get(ctx, r.generateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	var result entity.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode job result %s: %w", id, err)
	}
	return &result, nil
}

func (r *JobResultRepoImpl) Latest(ctx context.Context) (*entity.JobResult, error) {
	id, err := r.client.Get(ctx, latestJobKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}
