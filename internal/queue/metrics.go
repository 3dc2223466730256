package queue

import (
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// Metrics receives queue observability events
type Metrics interface {
	JobEnqueued(jobType string)
	JobFinished(jobType string, status domain.JobStatus, duration time.Duration)
	StoreError(op string)
	PollCycle(pending int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) JobEnqueued(string)                                  {}
func (noopMetrics) JobFinished(string, domain.JobStatus, time.Duration) {}
func (noopMetrics) StoreError(string)                                   {}
func (noopMetrics) PollCycle(int, time.Duration)                        {}
