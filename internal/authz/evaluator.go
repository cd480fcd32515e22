package authz

// Authorize decides allow or deny for an identity against a required
// permission. An empty required permission admits any authenticated,
// non-disabled identity. Pure function of its inputs; no I/O.
func Authorize(identity *Identity, required Permission) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if identity.Disabled {
		return ErrUserDisabled
	}
	if required == "" {
		return nil
	}
	if identity.HasPermission(required) {
		return nil
	}
	return &PermissionError{Permission: required}
}
