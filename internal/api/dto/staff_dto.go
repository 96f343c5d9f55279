package dto

import (
	"time"

	"github.com/spec-kit/crm-access/internal/domain"
)

// StaffRoleRequest payload for role assignment.
type StaffRoleRequest struct {
	Role domain.StaffRole `json:"role"`
}

// StaffRoleResponse response.
type StaffRoleResponse struct {
	UserID    string           `json:"user_id"`
	Role      domain.StaffRole `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ProvisionUserRequest payload for creating an operator.
type ProvisionUserRequest struct {
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Password       string           `json:"password"`
	Role           domain.StaffRole `json:"role"`
	OrganizationID *string          `json:"organization_id"`
}
