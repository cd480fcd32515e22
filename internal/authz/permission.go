// Package authz implements the access-control core: the identity cache, the
// permission evaluator and the authorization guard middleware.
package authz

// Permission is an atomic named capability gating one class of operation.
type Permission string

// The permission catalog is closed and known at build time.
const (
	PermUserView   Permission = "user.view"
	PermUserAdd    Permission = "user.add"
	PermUserUpdate Permission = "user.update"
	PermUserDelete Permission = "user.delete"

	PermRoleView   Permission = "role.view"
	PermRoleAdd    Permission = "role.add"
	PermRoleUpdate Permission = "role.update"
	PermRoleDelete Permission = "role.delete"
	PermRoleAssign Permission = "role.assign"

	PermAnnouncementAdd    Permission = "announcement.add"
	PermAnnouncementGetAll Permission = "announcement.get.all"
	PermAnnouncementUpdate Permission = "announcement.update"
	PermAnnouncementDelete Permission = "announcement.delete"
)

// Catalog lists every known permission.
func Catalog() []Permission {
	return []Permission{
		PermUserView,
		PermUserAdd,
		PermUserUpdate,
		PermUserDelete,
		PermRoleView,
		PermRoleAdd,
		PermRoleUpdate,
		PermRoleDelete,
		PermRoleAssign,
		PermAnnouncementAdd,
		PermAnnouncementGetAll,
		PermAnnouncementUpdate,
		PermAnnouncementDelete,
	}
}

// Known reports whether p is part of the catalog.
func Known(p Permission) bool {
	for _, known := range Catalog() {
		if p == known {
			return true
		}
	}
	return false
}
