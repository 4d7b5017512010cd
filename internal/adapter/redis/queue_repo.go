package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/linkchecker-service/internal/repository"
)

const queueKeyPrefix = "linkchecker:queue:"

// JobQueueImpl implements repository.JobQueue on a Redis list: jobs are pushed
// on the left and popped from the right.
type JobQueueImpl struct {
	client *redis.Client
	key    string
}

// NewJobQueue creates a queue for the given topic.
func NewJobQueue(client *redis.Client, topic string) *JobQueueImpl {
	return &JobQueueImpl{client: client, key: queueKeyPrefix + topic}
}

func (q *JobQueueImpl) Push(ctx context.Context, jobID string) error {
	return q.client.LPush(ctx, q.key, jobID).Err()
}

// Pop blocks for at most timeout waiting for a job.
func (q *JobQueueImpl) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with [key, value].
	return res[1], nil
}

func (q *JobQueueImpl) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
