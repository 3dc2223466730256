// Package processor holds the job processors of the review service.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/queue"
	"github.com/cuongbtq/review-queue/internal/storage"
)

const (
	// ReviewJobType is the job type handled by ReviewProcessor
	ReviewJobType = "process-review"

	// DefaultReviewDelay is the simulated processing time of a review
	DefaultReviewDelay = 500 * time.Millisecond

	// DefaultReviewMarker is appended to the comment of a processed review
	DefaultReviewMarker = " [Verified Review]"
)

// ReviewPayload is the payload of a process-review job
type ReviewPayload struct {
	ReviewID string `json:"reviewId" validate:"required"`
	BookID   string `json:"bookId"`
}

// ReviewConfig holds review processor settings
type ReviewConfig struct {
	Delay  time.Duration
	Marker string
}

// ReviewProcessor marks reviews as verified
type ReviewProcessor struct {
	store  storage.ReviewStore
	logger *slog.Logger
	delay  time.Duration
	marker string
}

// NewReviewProcessor creates a new review processor. A nil cfg uses the defaults.
func NewReviewProcessor(store storage.ReviewStore, logger *slog.Logger, cfg *ReviewConfig) *ReviewProcessor {
	p := &ReviewProcessor{
		store:  store,
		logger: logger,
		delay:  DefaultReviewDelay,
		marker: DefaultReviewMarker,
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if cfg != nil {
		if cfg.Delay >= 0 {
			p.delay = cfg.Delay
		}
		if cfg.Marker != "" {
			p.marker = cfg.Marker
		}
	}

	return p
}

// Register adds the processor to the engine under ReviewJobType
func (p *ReviewProcessor) Register(engine *queue.Engine) {
	engine.RegisterProcessor(ReviewJobType, queue.Typed(ReviewJobType, p.Process))
}

// Process appends the marker to the review comment and flags it processed
func (p *ReviewProcessor) Process(ctx context.Context, job domain.Job, payload ReviewPayload) error {
	review, err := p.store.GetReview(ctx, payload.ReviewID)
	if err != nil {
		if errors.Is(err, domain.ErrReviewNotFound) {
			return fmt.Errorf("review with ID %s not found", payload.ReviewID)
		}
		return fmt.Errorf("failed to load review: %w", err)
	}

	if err := sleep(ctx, p.delay); err != nil {
		return err
	}

	comment := review.Comment + p.marker
	processed := true

	if _, err := p.store.UpdateReview(ctx, review.ID, domain.ReviewUpdate{
		Comment:   &comment,
		Processed: &processed,
	}); err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	p.logger.Info("Review processed",
		slog.String("job_id", job.ID),
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
	)

	return nil
}

// sleep waits for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
