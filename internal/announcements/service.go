package announcements

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// Service handles announcement business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add creates an announcement authored by the given user.
func (s *Service) Add(ctx context.Context, authorID, title, content string) (*Announcement, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("announcements: title required")
	}
	a := Announcement{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		AuthorID: authorID,
		Enabled:  true,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns a page of announcements.
func (s *Service) List(ctx context.Context, filter Filter, page, size int) ([]Announcement, shared.Pagination, error) {
	pagination := shared.NewPagination(page, size, 0)
	list, total, err := s.repo.List(ctx, filter, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, size, total), nil
}

// DisplayList returns the enabled announcements shown on the index page.
func (s *Service) DisplayList(ctx context.Context) ([]Announcement, error) {
	return s.repo.ListEnabled(ctx)
}

// Update replaces title and content.
func (s *Service) Update(ctx context.Context, id, title, content string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("announcements: title required")
	}
	return s.repo.Update(ctx, id, title, content)
}

// SetEnabled enables or disables an announcement.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.repo.SetEnabled(ctx, id, enabled)
}

// Delete removes an announcement.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
