package repository

import "errors"

var (
	ErrNodeNotFound          = errors.New("node not found")
	ErrRepositoryUnavailable = errors.New("content repository is unavailable")
	ErrQueueEmpty            = errors.New("job queue is empty")
	ErrJobNotFound           = errors.New("job result not found")
)
