package domain

import (
	"strings"
	"time"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleStaff   StaffRole = "STAFF"
	StaffRoleManager StaffRole = "MANAGER"
	StaffRoleCLevel  StaffRole = "C_LEVEL"
	StaffRoleAdmin   StaffRole = "ADMIN"
)

// AllStaffRoles lists every role in the closed set.
var AllStaffRoles = []StaffRole{StaffRoleStaff, StaffRoleManager, StaffRoleCLevel, StaffRoleAdmin}

// Valid reports whether r is a member of the closed role set.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleStaff, StaffRoleManager, StaffRoleCLevel, StaffRoleAdmin:
		return true
	}
	return false
}

// ParseStaffRole normalizes user input into a StaffRole.
func ParseStaffRole(raw string) (StaffRole, bool) {
	role := StaffRole(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// StaffRoleRecord maps a user to its operator role.
type StaffRoleRecord struct {
	UserID    string
	Role      StaffRole
	CreatedAt time.Time
	UpdatedAt time.Time
}
