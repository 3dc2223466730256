package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/review-queue/internal/api/dto"
	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/processor"
	"github.com/gin-gonic/gin"
)

// ListBooks handles GET /api/v1/books
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.store.ListBooks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list books", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to fetch books"})
		return
	}

	c.JSON(http.StatusOK, dto.ListBooksResponse{Books: books})
}

// GetBook handles GET /api/v1/books/:book_id
func (h *BookHandler) GetBook(c *gin.Context) {
	var uri dto.BookURI
	if err := bindURI(c, &uri); err != nil {
		abortWithValidation(c, err)
		return
	}

	book, err := h.store.GetBook(c.Request.Context(), uri.BookID)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error: fmt.Sprintf("Book with ID %s not found", uri.BookID),
			})
			return
		}
		h.logger.Error("Failed to get book",
			slog.String("book_id", uri.BookID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to fetch book"})
		return
	}

	c.JSON(http.StatusOK, book)
}

// AddReview handles POST /api/v1/books/:book_id/reviews
// Stores the review and enqueues a process-review job for it
func (h *BookHandler) AddReview(c *gin.Context) {
	var uri dto.BookURI
	if err := bindURI(c, &uri); err != nil {
		h.rejectReview(c, err)
		return
	}

	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectReview(c, &bindError{err: fmt.Errorf("invalid request body: %w", err)})
		return
	}
	req.Normalize()

	if err := validate.StructCtx(c.Request.Context(), &req); err != nil {
		h.rejectReview(c, err)
		return
	}

	ctx := c.Request.Context()

	review, err := h.store.AddReview(ctx, uri.BookID, req.ToInput())
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, dto.AddReviewResponse{
				Success: false,
				Message: fmt.Sprintf("Book with ID %s not found", uri.BookID),
			})
			return
		}
		h.logger.Error("Failed to add review",
			slog.String("book_id", uri.BookID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.AddReviewResponse{
			Success: false,
			Message: "Failed to add review",
		})
		return
	}

	job, err := h.queue.Enqueue(ctx, processor.ReviewJobType, processor.ReviewPayload{
		ReviewID: review.ID,
		BookID:   uri.BookID,
	})
	if err != nil {
		h.logger.Error("Failed to enqueue review job",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.AddReviewResponse{
			Success: false,
			Message: "Failed to add review",
		})
		return
	}

	h.logger.Info("Review added",
		slog.String("review_id", review.ID),
		slog.String("book_id", uri.BookID),
		slog.String("job_id", job.ID),
	)

	c.JSON(http.StatusCreated, dto.AddReviewResponse{
		Success: true,
		Review:  &review,
		Message: "Review added successfully and queued for processing",
		JobID:   job.ID,
	})
}

func (h *BookHandler) rejectReview(c *gin.Context, err error) {
	errs := fieldErrors(err)
	c.JSON(http.StatusBadRequest, dto.AddReviewResponse{
		Success: false,
		Message: "Validation failed: " + joinMessages(errs),
		Errors:  errs,
	})
}
