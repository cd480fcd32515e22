package roles

import "time"

// Role represents a named bundle of permissions assignable to users.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
