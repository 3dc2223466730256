package postgres

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestJobRow_ToDomain(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	processed := created.Add(time.Second)

	tests := []struct {
		name string
		row  jobRow
		want domain.Job
	}{
		{
			name: "pending without payload",
			row:  jobRow{ID: "j1", Type: "t", Status: "pending", CreatedAt: created},
			want: domain.Job{ID: "j1", Type: "t", Status: domain.JobStatusPending, CreatedAt: created},
		},
		{
			name: "failed with error and payload",
			row: jobRow{
				ID:          "j2",
				Type:        "process-review",
				Payload:     []byte(`{"reviewId":"r1"}`),
				Status:      "failed",
				CreatedAt:   created,
				ProcessedAt: sql.NullTime{Time: processed, Valid: true},
				Error:       sql.NullString{String: "boom", Valid: true},
			},
			want: domain.Job{
				ID:          "j2",
				Type:        "process-review",
				Payload:     json.RawMessage(`{"reviewId":"r1"}`),
				Status:      domain.JobStatusFailed,
				CreatedAt:   created,
				ProcessedAt: &processed,
				Error:       "boom",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.toDomain())
		})
	}
}

func TestBookRow_ToDomain_NilReviews(t *testing.T) {
	book := bookRow{ID: "1", Title: "1984"}.toDomain(nil)

	assert.NotNil(t, book.Reviews)
	assert.Empty(t, book.Reviews)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, sql.NullString{String: "x", Valid: true}, nullString("x"))

	assert.False(t, nullTime(nil).Valid)
	now := time.Now()
	assert.Equal(t, sql.NullTime{Time: now, Valid: true}, nullTime(&now))

	assert.False(t, nullJSON(nil).Valid)
	assert.Equal(t, sql.NullString{String: `{"a":1}`, Valid: true}, nullJSON(json.RawMessage(`{"a":1}`)))
}
