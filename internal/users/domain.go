package users

import (
	"strings"
	"time"
)

// Role is the ordered access tier of an account. The numeric permission
// level is always derived from the role, never stored alongside it.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Permission levels derived from roles; routes gate on the minimum
// level they require.
const (
	ViewerLevel  = 1
	UserLevel    = 2
	ManagerLevel = 3
	// AdminLevel is the permission level required for administrative routes.
	AdminLevel = 4
)

// Level returns the permission level the role grants: viewer 1, user 2,
// manager 3, admin 4. Unknown roles grant nothing.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleUser:
		return 2
	case RoleManager:
		return 3
	case RoleAdmin:
		return 4
	}
	return 0
}

// Display returns the human readable role name.
func (r Role) Display() string {
	switch r {
	case RoleViewer:
		return "Viewer"
	case RoleUser:
		return "User"
	case RoleManager:
		return "Manager"
	case RoleAdmin:
		return "Administrator"
	}
	return "Unknown"
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// ParseRole normalizes a raw role string, falling back to viewer.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return RoleViewer
	}
	return role
}

// DefaultCommissionRate is the stored fraction applied when a form omits
// the commission rate.
const DefaultCommissionRate = 0.05

// User is an account. Employee attributes are populated for the viewer
// role but present on every row.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	LastLogin    *time.Time

	HireDate *time.Time
	// CommissionRate is stored as a fraction (0.05 means 5%).
	BaseSalary     float64
	CommissionRate float64
	DrawAmount     float64
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasPermission reports whether the user is active and ranks at or above
// the required level.
func (u *User) HasPermission(level int) bool {
	return u != nil && u.Active && u.Role.Level() >= level
}
