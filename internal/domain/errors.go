package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrBookNotFound is returned when a book cannot be found in the store
	ErrBookNotFound = errors.New("book not found")

	// ErrReviewNotFound is returned when a review cannot be found in the store
	ErrReviewNotFound = errors.New("review not found")

	// ErrInvalidTransition is returned when an update would move a job backwards
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidPayload is returned when a job payload cannot be decoded
	ErrInvalidPayload = errors.New("invalid job payload")
)

// MissingFieldError reports a required payload field that was absent
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

// NewMissingFieldError creates a new MissingFieldError
func NewMissingFieldError(field string) error {
	return &MissingFieldError{Field: field}
}
