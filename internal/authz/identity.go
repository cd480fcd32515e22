package authz

// Identity is the resolved, cache-friendly view of a user's auth-relevant
// state. Permissions are always the union of the grants of Roles; the cache
// stores whole snapshots and never patches them in place.
type Identity struct {
	UserID           string       `json:"user_id"`
	CredentialDigest string       `json:"credential_digest"`
	Disabled         bool         `json:"disabled"`
	Roles            []string     `json:"roles"`
	Permissions      []Permission `json:"permissions"`
}

// HasPermission reports whether the identity holds the given permission.
func (id *Identity) HasPermission(p Permission) bool {
	for _, held := range id.Permissions {
		if held == p {
			return true
		}
	}
	return false
}
