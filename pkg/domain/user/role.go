package user

// Role is the role label attached to a user record. Roles act only as
// default-permission templates applied when the record is created or
// bound to a tenant; authorization decisions always consult the stored
// per-resource permissions, never the role label.
type Role string

const (
	// RoleMaster is assigned to the user that creates a tenant.
	RoleMaster Role = "master"
	// RoleEntry is the default role for invited and lazily created users.
	RoleEntry Role = "entry"
	// RoleView is a read-only role.
	RoleView Role = "view"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleMaster, RoleEntry, RoleView:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}
