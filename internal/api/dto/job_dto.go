package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// JobURI binds the job_id path parameter
type JobURI struct {
	JobID string `uri:"job_id" validate:"required,uuid"`
}

// ListJobsRequest binds the job listing query
type ListJobsRequest struct {
	JobType  string `form:"job_type" validate:"omitempty,max=100"`
	Status   string `form:"status" validate:"omitempty,oneof=pending processing completed failed"`
	PageSize int    `form:"page_size" default:"20" validate:"gte=1"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is a page of jobs
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the API representation of a job
type JobDTO struct {
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	ProcessedAt *string         `json:"processed_at,omitempty"`
}

// NewJobDTO converts a domain job
func NewJobDTO(job domain.Job) JobDTO {
	out := JobDTO{
		JobID:     job.ID,
		JobType:   job.Type,
		Payload:   job.Payload,
		Status:    string(job.Status),
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	if job.ProcessedAt != nil {
		at := job.ProcessedAt.UTC().Format(time.RFC3339Nano)
		out.ProcessedAt = &at
	}

	return out
}
