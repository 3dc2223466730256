// Package postgres implements storage.Store on PostgreSQL using sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ storage.Store = (*Store)(nil)

const jobColumns = `id, type, payload, status, created_at, processed_at, error`

// Store handles all database operations for books, reviews and jobs
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Migrate creates the schema when missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Info("Database schema ready")
	return nil
}

// Seed inserts the default catalogue. Rows that already exist are left untouched.
func (s *Store) Seed(ctx context.Context) error {
	books, reviews := storage.SeedData()
	for _, b := range books {
		if _, err := s.db.ExecContext(ctx, seedBook,
			b.ID, b.Title, b.Author, b.ISBN, b.PublishedYear, b.Description,
		); err != nil {
			return fmt.Errorf("failed to seed book %s: %w", b.ID, err)
		}
	}
	for _, r := range reviews {
		if _, err := s.db.ExecContext(ctx, seedReview,
			r.ID, r.BookID, r.ReviewerName, r.Rating, r.Comment, r.CreatedAt, r.Processed,
		); err != nil {
			return fmt.Errorf("failed to seed review for book %s: %w", r.BookID, err)
		}
	}

	s.logger.Info("Seed data loaded",
		slog.Int("books", len(books)),
		slog.Int("reviews", len(reviews)),
	)
	return nil
}

// Close is a no-op; the connection pool is owned by the postgresql client
func (s *Store) Close() error { return nil }

// CreateJob inserts a new pending job
func (s *Store) CreateJob(ctx context.Context, jobType string, payload json.RawMessage) (domain.Job, error) {
	query := `
		INSERT INTO jobs (id, type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		uuid.NewString(),
		jobType,
		nullJSON(payload),
		string(domain.JobStatusPending),
		s.now().UTC(),
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	return row.toDomain(), nil
}

// UpdateJob locks the job row, applies update and writes it back in one transaction
func (s *Store) UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) (domain.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row jobRow
	err = tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, fmt.Errorf("failed to get job: %w", err)
	}

	next, err := row.toDomain().Apply(update)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", jobID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1,
			processed_at = $2,
			error = $3
		WHERE id = $4
	`, string(next.Status), nullTime(next.ProcessedAt), nullString(next.Error), jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, fmt.Errorf("failed to commit job update: %w", err)
	}

	s.logger.Debug("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(next.Status)),
	)

	return next, nil
}

// ListJobsByStatus returns jobs in status in insertion order
func (s *Store) ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY seq ASC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	return toJobs(rows), nil
}

// GetJob retrieves a job from the database by its ID
func (s *Store) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain(), nil
}

// ListJobs returns jobs matching filter, newest first
func (s *Store) ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return toJobs(rows), nil
}

// ListBooks returns all books with their reviews
func (s *Store) ListBooks(ctx context.Context) ([]domain.Book, error) {
	var books []bookRow
	if err := s.db.SelectContext(ctx, &books, `
		SELECT id, title, author, isbn, published_year, description
		FROM books
		ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	var reviews []reviewRow
	if err := s.db.SelectContext(ctx, &reviews, `
		SELECT id, book_id, reviewer_name, rating, comment, created_at, processed
		FROM reviews
		ORDER BY created_at, id
	`); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	byBook := make(map[string][]domain.Review)
	for _, r := range reviews {
		byBook[r.BookID] = append(byBook[r.BookID], r.toDomain())
	}

	result := make([]domain.Book, len(books))
	for i, b := range books {
		result[i] = b.toDomain(byBook[b.ID])
	}
	return result, nil
}

// GetBook returns a book with its reviews
func (s *Store) GetBook(ctx context.Context, bookID string) (domain.Book, error) {
	var book bookRow
	err := s.db.GetContext(ctx, &book, `
		SELECT id, title, author, isbn, published_year, description
		FROM books
		WHERE id = $1
	`, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("failed to get book: %w", err)
	}

	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, book_id, reviewer_name, rating, comment, created_at, processed
		FROM reviews
		WHERE book_id = $1
		ORDER BY created_at, id
	`, bookID); err != nil {
		return domain.Book{}, fmt.Errorf("failed to list reviews: %w", err)
	}

	reviews := make([]domain.Review, len(rows))
	for i, r := range rows {
		reviews[i] = r.toDomain()
	}
	return book.toDomain(reviews), nil
}

// AddReview inserts an unprocessed review for an existing book
func (s *Store) AddReview(ctx context.Context, bookID string, input domain.ReviewInput) (domain.Review, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID); err != nil {
		return domain.Review{}, fmt.Errorf("failed to check book: %w", err)
	}
	if !exists {
		return domain.Review{}, domain.ErrBookNotFound
	}

	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO reviews (id, book_id, reviewer_name, rating, comment, created_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, book_id, reviewer_name, rating, comment, created_at, processed
	`, uuid.NewString(), bookID, input.ReviewerName, input.Rating, input.Comment, s.now().UTC())
	if err != nil {
		return domain.Review{}, fmt.Errorf("failed to create review: %w", err)
	}

	return row.toDomain(), nil
}

// GetReview retrieves a review by its ID
func (s *Store) GetReview(ctx context.Context, reviewID string) (domain.Review, error) {
	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, book_id, reviewer_name, rating, comment, created_at, processed
		FROM reviews
		WHERE id = $1
	`, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("failed to get review: %w", err)
	}

	return row.toDomain(), nil
}

// UpdateReview applies update to a review in a single statement
func (s *Store) UpdateReview(ctx context.Context, reviewID string, update domain.ReviewUpdate) (domain.Review, error) {
	var comment sql.NullString
	if update.Comment != nil {
		comment = sql.NullString{String: *update.Comment, Valid: true}
	}
	var processed sql.NullBool
	if update.Processed != nil {
		processed = sql.NullBool{Bool: *update.Processed, Valid: true}
	}

	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE reviews
		SET comment = COALESCE($1, comment),
			processed = COALESCE($2, processed)
		WHERE id = $3
		RETURNING id, book_id, reviewer_name, rating, comment, created_at, processed
	`, comment, processed, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("failed to update review: %w", err)
	}

	return row.toDomain(), nil
}

func toJobs(rows []jobRow) []domain.Job {
	jobs := make([]domain.Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toDomain()
	}
	return jobs
}
