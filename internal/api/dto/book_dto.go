package dto

import (
	"strings"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// BookURI binds the book_id path parameter
type BookURI struct {
	BookID string `uri:"book_id" validate:"required,bookid"`
}

// CreateReviewRequest is the body of POST /books/:book_id/reviews
type CreateReviewRequest struct {
	ReviewerName string `json:"reviewerName" validate:"required,min=2,max=100"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment" validate:"required,min=10,max=1000"`
}

// Normalize trims surrounding whitespace before validation
func (r *CreateReviewRequest) Normalize() {
	r.ReviewerName = strings.TrimSpace(r.ReviewerName)
	r.Comment = strings.TrimSpace(r.Comment)
}

// ToInput converts the request to a domain review input
func (r *CreateReviewRequest) ToInput() domain.ReviewInput {
	return domain.ReviewInput{
		ReviewerName: r.ReviewerName,
		Rating:       r.Rating,
		Comment:      r.Comment,
	}
}

// AddReviewResponse reports the outcome of adding a review
type AddReviewResponse struct {
	Success bool           `json:"success"`
	Review  *domain.Review `json:"review"`
	Message string         `json:"message"`
	JobID   string         `json:"job_id,omitempty"`
	Errors  []FieldError   `json:"errors,omitempty"`
}

// ListBooksResponse wraps the book catalogue
type ListBooksResponse struct {
	Books []domain.Book `json:"books"`
}

// FieldError describes one failed validation rule
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response except AddReview
type ErrorResponse struct {
	Error  string       `json:"error"`
	Errors []FieldError `json:"errors,omitempty"`
}
