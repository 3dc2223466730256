package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/review-queue/internal/api/dto"
	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/queue"
	"github.com/cuongbtq/review-queue/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickingClock returns a clock that advances one second per call
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, string, any) (domain.Job, error) {
	return domain.Job{}, errors.New("store unavailable")
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T, enqueuer Enqueuer) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore(memory.WithSeedData(), memory.WithClock(tickingClock()))
	if enqueuer == nil {
		enqueuer = queue.NewEngine(&queue.Config{Store: store, Logger: testLogger()})
	}

	deps := &Dependencies{
		Logger:      testLogger(),
		Store:       store,
		Queue:       enqueuer,
		ServiceName: "review-api-service",
		HealthChecks: map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
		},
	}

	r := gin.New()
	books := NewBookHandler(deps)
	jobs := NewJobHandler(deps)
	r.GET("/health", NewHealthHandler(deps).Health)
	r.GET("/api/v1/books", books.ListBooks)
	r.GET("/api/v1/books/:book_id", books.GetBook)
	r.POST("/api/v1/books/:book_id/reviews", books.AddReview)
	r.GET("/api/v1/jobs", jobs.ListJobs)
	r.GET("/api/v1/jobs/:job_id", jobs.GetJob)

	return &testServer{engine: r, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBookHandler_ListBooks(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.ListBooksResponse](t, rec)
	require.Len(t, resp.Books, 3)
	assert.Equal(t, "The Great Gatsby", resp.Books[0].Title)
	assert.Len(t, resp.Books[0].Reviews, 1)
	assert.Empty(t, resp.Books[2].Reviews)
}

func TestBookHandler_GetBook(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantTitle string
		wantError string
	}{
		{name: "existing book", path: "/api/v1/books/2", wantCode: http.StatusOK, wantTitle: "To Kill a Mockingbird"},
		{name: "unknown book", path: "/api/v1/books/999", wantCode: http.StatusNotFound, wantError: "Book with ID 999 not found"},
		{name: "invalid characters", path: "/api/v1/books/bad!id", wantCode: http.StatusBadRequest, wantError: "Validation failed: book_id contains invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			rec := s.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantTitle != "" {
				book := decode[domain.Book](t, rec)
				assert.Equal(t, tt.wantTitle, book.Title)
				return
			}
			assert.Equal(t, tt.wantError, decode[dto.ErrorResponse](t, rec).Error)
		})
	}
}

func TestBookHandler_AddReview(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	rec := s.do(t, http.MethodPost, "/api/v1/books/1/reviews", map[string]any{
		"reviewerName": "  Carol  ",
		"rating":       4,
		"comment":      "Thoughtful and well paced.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[dto.AddReviewResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Review added successfully and queued for processing", resp.Message)
	require.NotNil(t, resp.Review)
	assert.Equal(t, "Carol", resp.Review.ReviewerName)
	assert.Equal(t, "1", resp.Review.BookID)
	assert.False(t, resp.Review.Processed)
	require.NotEmpty(t, resp.JobID)

	job, err := s.store.GetJob(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "process-review", job.Type)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.JSONEq(t, `{"reviewId":"`+resp.Review.ID+`","bookId":"1"}`, string(job.Payload))

	book, err := s.store.GetBook(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, book.Reviews, 2)
}

func TestBookHandler_AddReview_Rejected(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"reviewerName": "Dave",
			"rating":       3,
			"comment":      "Solid read overall.",
		}
	}

	tests := []struct {
		name        string
		path        string
		body         any
		wantCode     int
		wantMessage  string
		wantContains string
	}{
		{
			name:        "name too short",
			body:        func() map[string]any { b := valid(); b["reviewerName"] = "D"; return b }(),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: reviewerName must be at least 2 characters long",
		},
		{
			name:        "rating missing",
			body:        func() map[string]any { b := valid(); delete(b, "rating"); return b }(),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: rating is required",
		},
		{
			name:        "rating out of range",
			body:        func() map[string]any { b := valid(); b["rating"] = 6; return b }(),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: rating must be at most 5",
		},
		{
			name:        "comment too short after trimming",
			body:        func() map[string]any { b := valid(); b["comment"] = "   short      "; return b }(),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: comment must be at least 10 characters long",
		},
		{
			name:        "several violations",
			body:        map[string]any{"reviewerName": "", "rating": 9, "comment": ""},
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: reviewerName is required, rating must be at most 5, comment is required",
		},
		{
			name:         "malformed body",
			body:         `{"reviewerName":`,
			wantCode:     http.StatusBadRequest,
			wantContains: "Validation failed: invalid request body",
		},
		{
			name:         "rating of the wrong type",
			body:         `{"reviewerName":"Dave","rating":"five","comment":"Solid read overall."}`,
			wantCode:     http.StatusBadRequest,
			wantContains: "Validation failed: invalid request body",
		},
		{
			name:        "invalid book id",
			path:        "/api/v1/books/bad$id/reviews",
			body:        valid(),
			wantCode:    http.StatusBadRequest,
			wantMessage: "Validation failed: book_id contains invalid characters",
		},
		{
			name:        "unknown book",
			path:        "/api/v1/books/42/reviews",
			body:        valid(),
			wantCode:    http.StatusNotFound,
			wantMessage: "Book with ID 42 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			path := tt.path
			if path == "" {
				path = "/api/v1/books/1/reviews"
			}

			rec := s.do(t, http.MethodPost, path, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			resp := decode[dto.AddReviewResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Review)
			assert.Empty(t, resp.JobID)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Message)
			}
			if tt.wantContains != "" {
				assert.Contains(t, resp.Message, tt.wantContains)
			}

			jobs, err := s.store.ListJobsByStatus(context.Background(), domain.JobStatusPending)
			require.NoError(t, err)
			assert.Empty(t, jobs, "rejected reviews must not enqueue jobs")
		})
	}
}

func TestBookHandler_AddReview_EnqueueFailure(t *testing.T) {
	s := newTestServer(t, failingEnqueuer{})

	rec := s.do(t, http.MethodPost, "/api/v1/books/1/reviews", map[string]any{
		"reviewerName": "Erin",
		"rating":       5,
		"comment":      "Could not put it down.",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[dto.AddReviewResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to add review", resp.Message)
}

func TestJobHandler_GetJob(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	job, err := s.store.CreateJob(ctx, "process-review", json.RawMessage(`{"reviewId":"r1"}`))
	require.NoError(t, err)
	_, err = s.store.UpdateJob(ctx, job.ID, domain.StatusUpdate(domain.JobStatusProcessing, time.Now()))
	require.NoError(t, err)
	_, err = s.store.UpdateJob(ctx, job.ID, domain.FailedUpdate("boom", time.Now()))
	require.NoError(t, err)

	t.Run("existing job", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[dto.JobDTO](t, rec)
		assert.Equal(t, job.ID, got.JobID)
		assert.Equal(t, "process-review", got.JobType)
		assert.Equal(t, "failed", got.Status)
		assert.Equal(t, "boom", got.Error)
		assert.NotNil(t, got.ProcessedAt)
		assert.JSONEq(t, `{"reviewId":"r1"}`, string(got.Payload))
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/jobs/8d4c5a6e-1f2b-4c3d-9e8f-0a1b2c3d4e5f", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Validation failed: job_id must be a valid UUID", decode[dto.ErrorResponse](t, rec).Error)
	})
}

func TestJobHandler_ListJobs_Pagination(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	var created []string
	for i := 0; i < 5; i++ {
		job, err := s.store.CreateJob(ctx, "process-review", nil)
		require.NoError(t, err)
		created = append(created, job.ID)
	}

	var seen []string
	cursor := ""
	for page := 0; page < 5; page++ {
		path := "/api/v1/jobs?page_size=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}

		rec := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[dto.ListJobsResponse](t, rec)
		assert.LessOrEqual(t, len(resp.Jobs), 2)
		for _, j := range resp.Jobs {
			seen = append(seen, j.JobID)
		}

		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	// newest first
	want := []string{created[4], created[3], created[2], created[1], created[0]}
	assert.Equal(t, want, seen)
}

func TestJobHandler_ListJobs_Filters(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	pending, err := s.store.CreateJob(ctx, "process-review", nil)
	require.NoError(t, err)
	other, err := s.store.CreateJob(ctx, "send-email", nil)
	require.NoError(t, err)
	done, err := s.store.CreateJob(ctx, "process-review", nil)
	require.NoError(t, err)
	_, err = s.store.UpdateJob(ctx, done.ID, domain.StatusUpdate(domain.JobStatusProcessing, time.Now()))
	require.NoError(t, err)
	_, err = s.store.UpdateJob(ctx, done.ID, domain.StatusUpdate(domain.JobStatusCompleted, time.Now()))
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "no filter", query: "", wantIDs: []string{done.ID, other.ID, pending.ID}},
		{name: "by status", query: "?status=pending", wantIDs: []string{other.ID, pending.ID}},
		{name: "by type", query: "?job_type=process-review", wantIDs: []string{done.ID, pending.ID}},
		{name: "by type and status", query: "?job_type=process-review&status=completed", wantIDs: []string{done.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/v1/jobs"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[dto.ListJobsResponse](t, rec)
			ids := make([]string, len(resp.Jobs))
			for i, j := range resp.Jobs {
				ids[i] = j.JobID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Empty(t, resp.NextCursor)
		})
	}
}

func TestJobHandler_ListJobs_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown status", query: "?status=archived"},
		{name: "negative page size", query: "?page_size=-1"},
		{name: "non numeric page size", query: "?page_size=ten"},
		{name: "cursor not base64", query: "?cursor=***"},
		{name: "cursor without separator", query: "?cursor=" + "bm9zZXBhcmF0b3I="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			rec := s.do(t, http.MethodGet, "/api/v1/jobs"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all dependencies healthy",
			checks:     map[string]HealthCheck{"store": func(context.Context) error { return nil }},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "one dependency down",
			checks: map[string]HealthCheck{
				"store":    func(context.Context) error { return nil },
				"rabbitmq": func(context.Context) error { return errors.New("not connected") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&Dependencies{Logger: testLogger(), ServiceName: "svc", HealthChecks: tt.checks})
			r := gin.New()
			r.GET("/health", h.Health)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "svc", body["service"])
		})
	}
}
