package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
)

// Service orchestrates role management. Role-level permission changes affect
// every holder, so the constructor requires the identity-cache invalidator.
type Service struct {
	repo        Repository
	invalidator authz.Invalidator
}

// NewService constructs a Service.
func NewService(repo Repository, invalidator authz.Invalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("roles: role name required")
	}
	role := Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return &role, nil
}

// UpdateRole updates name and description.
func (s *Service) UpdateRole(ctx context.Context, id, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("roles: role name required")
	}
	return s.repo.UpdateRole(ctx, Role{ID: id, Name: name, Description: strings.TrimSpace(description)})
}

// DeleteRole removes a role and invalidates every holder's cached identity.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	holders, err := s.repo.ListRoleUserIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	return s.invalidateAll(ctx, holders)
}

// GetRolePermissions lists the permissions granted by a role.
func (s *Service) GetRolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.GetRolePermissions(ctx, roleID)
}

// SetRolePermissions replaces a role's permission set and invalidates every
// holder, so the change is reflected on their next resolve.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, perms []authz.Permission) error {
	for _, p := range perms {
		if !authz.Known(p) {
			return fmt.Errorf("roles: unknown permission %q", p)
		}
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.SetRolePermissions(ctx, roleID, perms); err != nil {
		return err
	}
	holders, err := s.repo.ListRoleUserIDs(ctx, roleID)
	if err != nil {
		return err
	}
	return s.invalidateAll(ctx, holders)
}

func (s *Service) invalidateAll(ctx context.Context, userIDs []string) error {
	var firstErr error
	for _, id := range userIDs {
		if err := s.invalidator.Invalidate(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
