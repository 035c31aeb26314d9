// Package auth holds the ownership and role checks used by every mutating
// operation. It works on plain identifiers so it stays decoupled from the
// session mechanism that produced them.
package auth

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// IsOwner reports whether the caller owns the resource.
func IsOwner(resourceOwnerID, callerID string) bool {
	return resourceOwnerID != "" && resourceOwnerID == callerID
}

// IsAdmin reports whether the role grants access to the admin surface.
func IsAdmin(role string) bool {
	return role == RoleAdmin
}
