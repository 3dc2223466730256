package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a background job
type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// UnknownErrorMessage is recorded when a job fails with an error that carries no message
const UnknownErrorMessage = "unknown error"

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Re-confirming the current status is always allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}

	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job is a unit of background work persisted by a job store
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// JobUpdate is a partial update of a job. Nil fields are left unchanged.
type JobUpdate struct {
	Status      *JobStatus
	ProcessedAt *time.Time
	Error       *string
}

// StatusUpdate builds an update that moves a job to status at the given time
func StatusUpdate(status JobStatus, at time.Time) JobUpdate {
	return JobUpdate{Status: &status, ProcessedAt: &at}
}

// FailedUpdate builds an update that marks a job failed with msg at the given time
func FailedUpdate(msg string, at time.Time) JobUpdate {
	u := StatusUpdate(JobStatusFailed, at)
	u.Error = &msg
	return u
}

// Apply merges u into a copy of j and returns it.
//
// The error message is kept only while the job is failed: any other status clears it,
// and a failed job without a message gets UnknownErrorMessage.
func (j Job) Apply(u JobUpdate) (Job, error) {
	next := j

	if u.Status != nil {
		if !u.Status.Valid() {
			return j, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, *u.Status)
		}
		if !j.Status.CanTransitionTo(*u.Status) {
			return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *u.Status)
		}
		next.Status = *u.Status
	}

	if u.ProcessedAt != nil {
		at := *u.ProcessedAt
		next.ProcessedAt = &at
	}

	if u.Error != nil {
		next.Error = *u.Error
	}

	if next.Status == JobStatusFailed {
		if next.Error == "" {
			next.Error = UnknownErrorMessage
		}
	} else {
		next.Error = ""
	}

	return next, nil
}
