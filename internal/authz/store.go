package authz

import "context"

// UserRecord is the durable store's view of a user before resolution.
type UserRecord struct {
	ID               string
	CredentialDigest string
	Disabled         bool
	RoleIDs          []string
}

// Store is the durable identity source of truth consulted on cache misses.
type Store interface {
	// LoadUser fetches a user record, returning ErrIdentityNotFound when no
	// such user exists.
	LoadUser(ctx context.Context, userID string) (UserRecord, error)
	// LoadRolePermissions fetches the permissions granted by a role.
	LoadRolePermissions(ctx context.Context, roleID string) ([]Permission, error)
}

// Invalidator is the invalidation hook every mutator of user or role data is
// required to call. Services take it as a constructor argument so the
// obligation is part of their compile-time contract.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}
