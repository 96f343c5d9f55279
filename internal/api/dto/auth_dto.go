package dto

import (
	"time"

	"github.com/spec-kit/crm-access/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload for refresh when no cookie is sent.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse describes one issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	User    UserResponse  `json:"user"`
	Access  TokenResponse `json:"access"`
	Refresh TokenResponse `json:"refresh"`
}

// UserResponse is the public view of an operator.
type UserResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Role           domain.StaffRole  `json:"role"`
	OrganizationID *string           `json:"organization_id,omitempty"`
	Status         domain.UserStatus `json:"status,omitempty"`
}

// MeResponse echoes the caller's verified claims.
type MeResponse struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	Name           string           `json:"name"`
	Role           domain.StaffRole `json:"role"`
	OrganizationID string           `json:"organization_id,omitempty"`
	IssuedAt       time.Time        `json:"issued_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
}
