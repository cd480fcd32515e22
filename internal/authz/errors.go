package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates no resolvable caller identity.
	ErrUnauthenticated = errors.New("authz: authentication required")
	// ErrIdentityNotFound indicates the durable store has no such user. A
	// session may still name the user if it was deleted after login, so
	// callers treat this as unauthenticated rather than a server fault.
	ErrIdentityNotFound = errors.New("authz: identity not found")
	// ErrUserDisabled indicates a disabled identity; it fails every check
	// regardless of permissions.
	ErrUserDisabled = errors.New("authz: user disabled")
)

// PermissionError reports a denied check and the permission that was missing.
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("authz: missing permission %s", e.Permission)
}
