package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
)

type jobRow struct {
	ID          string         `db:"id"`
	Type        string         `db:"type"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	ProcessedAt sql.NullTime   `db:"processed_at"`
	Error       sql.NullString `db:"error"`
}

func (r jobRow) toDomain() domain.Job {
	job := domain.Job{
		ID:        r.ID,
		Type:      r.Type,
		Status:    domain.JobStatus(r.Status),
		CreatedAt: r.CreatedAt,
		Error:     r.Error.String,
	}
	if len(r.Payload) > 0 {
		job.Payload = json.RawMessage(r.Payload)
	}
	if r.ProcessedAt.Valid {
		at := r.ProcessedAt.Time
		job.ProcessedAt = &at
	}
	return job
}

type bookRow struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	Author        string `db:"author"`
	ISBN          string `db:"isbn"`
	PublishedYear int    `db:"published_year"`
	Description   string `db:"description"`
}

func (r bookRow) toDomain(reviews []domain.Review) domain.Book {
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return domain.Book{
		ID:            r.ID,
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		PublishedYear: r.PublishedYear,
		Description:   r.Description,
		Reviews:       reviews,
	}
}

type reviewRow struct {
	ID           string    `db:"id"`
	BookID       string    `db:"book_id"`
	ReviewerName string    `db:"reviewer_name"`
	Rating       int       `db:"rating"`
	Comment      string    `db:"comment"`
	CreatedAt    time.Time `db:"created_at"`
	Processed    bool      `db:"processed"`
}

func (r reviewRow) toDomain() domain.Review {
	return domain.Review{
		ID:           r.ID,
		BookID:       r.BookID,
		ReviewerName: r.ReviewerName,
		Rating:       r.Rating,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
		Processed:    r.Processed,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullJSON passes payloads as text; lib/pq would hex-encode a []byte for a jsonb column
func nullJSON(raw json.RawMessage) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}
