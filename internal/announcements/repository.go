package announcements

import "context"

// Repository defines persistence operations for announcements.
type Repository interface {
	Get(ctx context.Context, id string) (*Announcement, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Announcement, int, error)
	ListEnabled(ctx context.Context) ([]Announcement, error)
	Create(ctx context.Context, announcement Announcement) error
	Update(ctx context.Context, id, title, content string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}
