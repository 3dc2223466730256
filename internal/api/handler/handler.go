package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/storage"
)

// Enqueuer submits background jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (domain.Job, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Store       storage.Store
	Queue       Enqueuer
	ServiceName string

	// HealthChecks are run by GET /health, keyed by dependency name
	HealthChecks map[string]HealthCheck
}

// BookHandler handles book and review HTTP requests
type BookHandler struct {
	logger *slog.Logger
	store  storage.BookStore
	queue  Enqueuer
}

// NewBookHandler creates a new BookHandler instance
func NewBookHandler(deps *Dependencies) *BookHandler {
	return &BookHandler{
		logger: deps.Logger,
		store:  deps.Store,
		queue:  deps.Queue,
	}
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	store  storage.JobStore
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}
