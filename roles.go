package userauth

import "strings"

// Role is the account role stored with the record and carried in access
// tokens.
type Role string

const (
	// RoleUser is the default role for registered accounts
	RoleUser Role = "user"
	// RoleAnonymous is an assignable low privilege role
	RoleAnonymous Role = "anonymous_user"
	// RoleAdmin can list, fetch and delete other accounts
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAnonymous, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// GetAllRoles returns the predefined roles
func GetAllRoles() []Role {
	return []Role{RoleAnonymous, RoleUser, RoleAdmin}
}

// ParseRole accepts both the stored value ("admin") and the
// enum style name ("ADMIN", "ANONYMOUS_USER"), case-insensitive.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.IsValid()
}
