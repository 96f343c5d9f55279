package domain

import "time"

// UserStatus represents lifecycle states for an operator account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an operator account that can sign in to the CRM.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           StaffRole
	OrganizationID *string
	Status         UserStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the account may sign in.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive
}
