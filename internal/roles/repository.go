package roles

import (
	"context"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
)

// Repository defines persistence operations for roles.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	CreateRole(ctx context.Context, role Role) error
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id string) error
	GetRolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error)
	SetRolePermissions(ctx context.Context, roleID string, perms []authz.Permission) error
	// ListRoleUserIDs returns the IDs of every user holding the role, so
	// role-level mutations can invalidate each holder's cached identity.
	ListRoleUserIDs(ctx context.Context, roleID string) ([]string, error)
}
