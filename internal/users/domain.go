package users

import "time"

// User represents a drive user account.
type User struct {
	ID        string
	Email     string
	Nickname  string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows paged user listings.
type Filter struct {
	// Expression matches against email and nickname.
	Expression string
}

// Avatar holds decoded avatar bytes and their content type.
type Avatar struct {
	ContentType string
	Content     []byte
}
