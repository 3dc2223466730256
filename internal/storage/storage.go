// Package storage defines the persistence contracts shared by the job queue and the API.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// JobStore persists job records and their lifecycle state
type JobStore interface {
	// CreateJob assigns an identifier and stores a new pending job
	CreateJob(ctx context.Context, jobType string, payload json.RawMessage) (domain.Job, error)

	// UpdateJob merges update into the stored job and returns the result.
	// Returns domain.ErrJobNotFound for unknown identifiers.
	UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) (domain.Job, error)

	// ListJobsByStatus returns every job in status, oldest first
	ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error)

	// GetJob returns a job by its identifier
	GetJob(ctx context.Context, jobID string) (domain.Job, error)

	// ListJobs returns jobs matching filter, newest first.
	// Up to PageSize+1 jobs are returned so callers can detect a further page.
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)
}

// BookStore provides read access to books and review creation
type BookStore interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	AddReview(ctx context.Context, bookID string, input domain.ReviewInput) (domain.Review, error)
}

// ReviewStore provides the review operations used by job processors
type ReviewStore interface {
	GetReview(ctx context.Context, reviewID string) (domain.Review, error)
	UpdateReview(ctx context.Context, reviewID string, update domain.ReviewUpdate) (domain.Review, error)
}

// Store is the full data layer of the service
type Store interface {
	JobStore
	BookStore
	ReviewStore
	Close() error
}

// JobFilter narrows a job listing
type JobFilter struct {
	JobType  string
	Status   domain.JobStatus
	PageSize int
	Cursor   *JobCursor
}

// JobCursor marks the last job of a previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// Admits reports whether job belongs to the page that starts after the cursor
// in newest-first order. A nil cursor admits every job.
func (c *JobCursor) Admits(job domain.Job) bool {
	if c == nil {
		return true
	}
	if job.CreatedAt.Equal(c.CreatedAt) {
		return job.ID < c.JobID
	}
	return job.CreatedAt.Before(c.CreatedAt)
}
