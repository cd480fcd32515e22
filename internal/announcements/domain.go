package announcements

import "time"

// Announcement is a notice shown to drive users.
type Announcement struct {
	ID        string
	Title     string
	Content   string
	AuthorID  string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows paged announcement listings.
type Filter struct {
	// Expression matches against title and content.
	Expression string
}
