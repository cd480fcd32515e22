package users

import "context"

// Repository defines data access methods for users.
type Repository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context, filter Filter, limit, offset int) ([]User, int, error)
	CreateUser(ctx context.Context, user User, credentialDigest string) error
	DeleteUser(ctx context.Context, id string) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
	SetCredentialDigest(ctx context.Context, id, digest string) error
	UpdateInfo(ctx context.Context, id, nickname string) error
	GetRoles(ctx context.Context, userID string) ([]string, error)
	AddRoles(ctx context.Context, userID string, roleIDs []string) error
	RemoveRoles(ctx context.Context, userID string, roleIDs []string) error
}
