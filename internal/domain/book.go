package domain

import "time"

// Book is a catalogue entry that collects reviews
type Book struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	ISBN          string   `json:"isbn"`
	PublishedYear int      `json:"publishedYear"`
	Description   string   `json:"description"`
	Reviews       []Review `json:"reviews"`
}

// Review is a reader's opinion about a book
type Review struct {
	ID           string    `json:"id"`
	BookID       string    `json:"bookId"`
	ReviewerName string    `json:"reviewerName"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
	Processed    bool      `json:"processed"`
}

// ReviewInput holds the client supplied fields of a new review
type ReviewInput struct {
	ReviewerName string
	Rating       int
	Comment      string
}

// ReviewUpdate is a partial update of a review. Nil fields are left unchanged.
type ReviewUpdate struct {
	Comment   *string
	Processed *bool
}

// Apply merges u into a copy of r
func (r Review) Apply(u ReviewUpdate) Review {
	if u.Comment != nil {
		r.Comment = *u.Comment
	}
	if u.Processed != nil {
		r.Processed = *u.Processed
	}
	return r
}
