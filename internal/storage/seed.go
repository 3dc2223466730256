package storage

import (
	"fmt"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/google/uuid"
)

// seedReviewID is stable across calls so durable stores can seed idempotently
func seedReviewID(n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("review-queue/seed/review/%d", n))).String()
}

// SeedData returns the default catalogue: three books and two processed reviews
func SeedData() ([]domain.Book, []domain.Review) {
	books := []domain.Book{
		{
			ID:            "1",
			Title:         "The Great Gatsby",
			Author:        "F. Scott Fitzgerald",
			ISBN:          "978-0-7432-7356-5",
			PublishedYear: 1925,
			Description:   "A classic American novel set in the Jazz Age",
		},
		{
			ID:            "2",
			Title:         "To Kill a Mockingbird",
			Author:        "Harper Lee",
			ISBN:          "978-0-06-112008-4",
			PublishedYear: 1960,
			Description:   "A gripping tale of racial injustice and childhood innocence",
		},
		{
			ID:            "3",
			Title:         "1984",
			Author:        "George Orwell",
			ISBN:          "978-0-452-28423-4",
			PublishedYear: 1949,
			Description:   "A dystopian social science fiction novel",
		},
	}

	reviews := []domain.Review{
		{
			ID:           seedReviewID(1),
			BookID:       "1",
			ReviewerName: "Alice Johnson",
			Rating:       5,
			Comment:      "An absolute masterpiece of American literature.",
			CreatedAt:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Processed:    true,
		},
		{
			ID:           seedReviewID(2),
			BookID:       "2",
			ReviewerName: "Bob Smith",
			Rating:       4,
			Comment:      "Powerful and moving story.",
			CreatedAt:    time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			Processed:    true,
		},
	}

	return books, reviews
}
