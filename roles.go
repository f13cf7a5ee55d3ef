package passwordless

// UserRole is the role exposed to the route guard
type UserRole string

const (
	// RoleStandard is the default role for every verified identity
	RoleStandard UserRole = "standard"
	// RoleSuperadmin unlocks administrative views
	RoleSuperadmin UserRole = "superadmin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleStandard, RoleSuperadmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleStandard:   0,
		RoleSuperadmin: 1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStandard,
		RoleSuperadmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}

// RoleOrDefault maps an absent or unknown role value to RoleStandard.
// Absence must never resolve to an elevated role.
func RoleOrDefault(roleStr string) UserRole {
	if role, ok := ParseRole(roleStr); ok {
		return role
	}
	return RoleStandard
}
