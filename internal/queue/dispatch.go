package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// pollCycle dispatches every job that was pending when the cycle began.
// A failure to read the snapshot is logged and the cycle ends early. Once ctx is
// done no further job is dispatched; the rest of the snapshot stays pending.
func (e *Engine) pollCycle(ctx context.Context) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()

	jobs, err := e.store.ListJobsByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		e.metrics.StoreError("list_pending")
		e.logger.Error("Failed to fetch pending jobs",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(jobs) > 0 {
		e.logger.Debug("Dispatching pending jobs",
			slog.Int("count", len(jobs)),
		)
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			e.logger.Info("Poll cycle interrupted - context canceled",
				slog.Int("left_pending", len(jobs)-i),
			)
			break
		}
		e.processJob(ctx, job)
	}

	e.metrics.PollCycle(len(jobs), time.Since(start))
}

// processJob moves one job through processing to a terminal status.
//
// A failed status update is treated as a failure of the job itself. Side effects of
// a processor that already returned are not rolled back.
//
// Status writes ignore cancellation of ctx so a dispatched job always reaches a
// terminal status; only the processor sees ctx as given.
func (e *Engine) processJob(ctx context.Context, job domain.Job) {
	start := time.Now()
	writeCtx := context.WithoutCancel(ctx)
	logger := e.logger.With(
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
	)

	processor, ok := e.registry.Lookup(job.Type)
	if !ok {
		logger.Warn("No processor registered for job type")
		e.failJob(writeCtx, logger, job, fmt.Sprintf("no processor registered for type %s", job.Type), start)
		return
	}

	running, err := e.store.UpdateJob(writeCtx, job.ID, domain.StatusUpdate(domain.JobStatusProcessing, e.now()))
	if err != nil {
		e.metrics.StoreError("mark_processing")
		logger.Error("Failed to update job status to processing",
			slog.String("error", err.Error()),
		)
		e.failJob(writeCtx, logger, job, errorMessage(err), start)
		return
	}

	logger.Info("Processing job")

	if err := e.execute(ctx, processor, running); err != nil {
		logger.Error("Job execution failed",
			slog.String("error", err.Error()),
		)
		e.failJob(writeCtx, logger, job, errorMessage(err), start)
		return
	}

	if _, err := e.store.UpdateJob(writeCtx, job.ID, domain.StatusUpdate(domain.JobStatusCompleted, e.now())); err != nil {
		e.metrics.StoreError("mark_completed")
		logger.Error("Failed to update job status to completed",
			slog.String("error", err.Error()),
		)
		e.failJob(writeCtx, logger, job, errorMessage(err), start)
		return
	}

	e.metrics.JobFinished(job.Type, domain.JobStatusCompleted, time.Since(start))
	logger.Info("Job completed successfully",
		slog.Duration("duration", time.Since(start)),
	)
}

// failJob records msg on the job. If that update fails too the job is left in
// whatever state the store holds and the error is only reported.
func (e *Engine) failJob(ctx context.Context, logger *slog.Logger, job domain.Job, msg string, start time.Time) {
	if _, err := e.store.UpdateJob(ctx, job.ID, domain.FailedUpdate(msg, e.now())); err != nil {
		e.metrics.StoreError("mark_failed")
		logger.Error("Failed to update job status to failed",
			slog.String("job_error", msg),
			slog.String("error", err.Error()),
		)
		return
	}

	e.metrics.JobFinished(job.Type, domain.JobStatusFailed, time.Since(start))
}

// execute runs the processor with panic recovery
func (e *Engine) execute(ctx context.Context, p Processor, job domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return p.Process(ctx, job)
}

// errorMessage returns the text recorded on a failed job
func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return domain.UnknownErrorMessage
	}
	return err.Error()
}
