package entity

import "time"

// JobState is the outcome of a data feed generation job.
type JobState string

const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// JobResult describes the latest state of a generation job.
type JobResult struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	Message    string     `json:"message,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
