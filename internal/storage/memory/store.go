// Package memory provides an in-memory implementation of storage.Store.
// Safe for concurrent access; contents are lost when the process exits.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/storage"
	"github.com/google/uuid"
)

var _ storage.Store = (*Store)(nil)

type jobRecord struct {
	seq uint64
	job domain.Job
}

// Store keeps books, reviews and jobs in maps guarded by a single mutex,
// which gives every operation per-key atomicity.
type Store struct {
	mu sync.RWMutex

	books       map[string]domain.Book
	bookOrder   []string
	reviews     map[string]domain.Review
	bookReviews map[string][]string
	jobs        map[string]*jobRecord
	jobSeq      uint64

	now   func() time.Time
	newID func() string
}

// Option configures a Store
type Option func(*Store)

// WithBooks seeds the store with books
func WithBooks(books ...domain.Book) Option {
	return func(s *Store) {
		for _, b := range books {
			s.putBook(b)
		}
	}
}

// WithReviews seeds the store with reviews. Reviews for unknown books are kept
// but not attached to any book.
func WithReviews(reviews ...domain.Review) Option {
	return func(s *Store) {
		for _, r := range reviews {
			s.putReview(r)
		}
	}
}

// WithSeedData seeds the store with the default catalogue
func WithSeedData() Option {
	return func(s *Store) {
		books, reviews := storage.SeedData()
		WithBooks(books...)(s)
		WithReviews(reviews...)(s)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides the identifier generator
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// NewStore creates an empty store and applies opts in order
func NewStore(opts ...Option) *Store {
	s := &Store{
		books:       make(map[string]domain.Book),
		reviews:     make(map[string]domain.Review),
		bookReviews: make(map[string][]string),
		jobs:        make(map[string]*jobRecord),
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Close is a no-op for the memory store
func (s *Store) Close() error { return nil }

// CreateJob stores a new pending job
func (s *Store) CreateJob(_ context.Context, jobType string, payload json.RawMessage) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if _, exists := s.jobs[id]; exists {
		return domain.Job{}, fmt.Errorf("job id %s already exists", id)
	}

	s.jobSeq++
	job := domain.Job{
		ID:        id,
		Type:      jobType,
		Payload:   cloneRaw(payload),
		Status:    domain.JobStatusPending,
		CreatedAt: s.now(),
	}
	s.jobs[id] = &jobRecord{seq: s.jobSeq, job: job}

	return cloneJob(job), nil
}

// UpdateJob merges update into the stored job
func (s *Store) UpdateJob(_ context.Context, jobID string, update domain.JobUpdate) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	next, err := rec.job.Apply(update)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", jobID, err)
	}
	rec.job = next

	return cloneJob(next), nil
}

// ListJobsByStatus returns jobs in status in insertion order
func (s *Store) ListJobsByStatus(_ context.Context, status domain.JobStatus) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*jobRecord, 0)
	for _, rec := range s.jobs {
		if rec.job.Status == status {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	jobs := make([]domain.Job, len(recs))
	for i, rec := range recs {
		jobs[i] = cloneJob(rec.job)
	}
	return jobs, nil
}

// GetJob returns a job by its identifier
func (s *Store) GetJob(_ context.Context, jobID string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return cloneJob(rec.job), nil
}

// ListJobs returns jobs matching filter, newest first
func (s *Store) ListJobs(_ context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*jobRecord, 0)
	for _, rec := range s.jobs {
		if filter.JobType != "" && rec.job.Type != filter.JobType {
			continue
		}
		if filter.Status != "" && rec.job.Status != filter.Status {
			continue
		}
		if !filter.Cursor.Admits(rec.job) {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].job, recs[j].job
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if filter.PageSize > 0 && len(recs) > filter.PageSize+1 {
		recs = recs[:filter.PageSize+1]
	}

	jobs := make([]domain.Job, len(recs))
	for i, rec := range recs {
		jobs[i] = cloneJob(rec.job)
	}
	return jobs, nil
}

// ListBooks returns all books in seed order with their reviews
func (s *Store) ListBooks(_ context.Context) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]domain.Book, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		books = append(books, s.assembleBook(id))
	}
	return books, nil
}

// GetBook returns a book with its reviews
func (s *Store) GetBook(_ context.Context, bookID string) (domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.books[bookID]; !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return s.assembleBook(bookID), nil
}

// AddReview creates an unprocessed review for an existing book
func (s *Store) AddReview(_ context.Context, bookID string, input domain.ReviewInput) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return domain.Review{}, domain.ErrBookNotFound
	}

	review := domain.Review{
		ID:           s.newID(),
		BookID:       bookID,
		ReviewerName: input.ReviewerName,
		Rating:       input.Rating,
		Comment:      input.Comment,
		CreatedAt:    s.now(),
		Processed:    false,
	}
	s.putReview(review)

	return review, nil
}

// GetReview returns a review by its identifier
func (s *Store) GetReview(_ context.Context, reviewID string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, ok := s.reviews[reviewID]
	if !ok {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	return review, nil
}

// UpdateReview merges update into the stored review
func (s *Store) UpdateReview(_ context.Context, reviewID string, update domain.ReviewUpdate) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	review, ok := s.reviews[reviewID]
	if !ok {
		return domain.Review{}, domain.ErrReviewNotFound
	}

	review = review.Apply(update)
	s.reviews[reviewID] = review
	return review, nil
}

// putBook must be called with mu held or during construction
func (s *Store) putBook(b domain.Book) {
	if _, exists := s.books[b.ID]; !exists {
		s.bookOrder = append(s.bookOrder, b.ID)
	}
	b.Reviews = nil
	s.books[b.ID] = b
}

// putReview must be called with mu held or during construction
func (s *Store) putReview(r domain.Review) {
	if _, exists := s.reviews[r.ID]; !exists {
		s.bookReviews[r.BookID] = append(s.bookReviews[r.BookID], r.ID)
	}
	s.reviews[r.ID] = r
}

func (s *Store) assembleBook(bookID string) domain.Book {
	book := s.books[bookID]
	ids := s.bookReviews[bookID]
	book.Reviews = make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		book.Reviews = append(book.Reviews, s.reviews[id])
	}
	return book
}

func cloneJob(j domain.Job) domain.Job {
	j.Payload = cloneRaw(j.Payload)
	if j.ProcessedAt != nil {
		at := *j.ProcessedAt
		j.ProcessedAt = &at
	}
	return j
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
