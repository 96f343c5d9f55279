package dto

import (
	"time"

	"github.com/spec-kit/crm-access/internal/domain"
)

// LeadRequest payload for create and update. Omitted fields are left as is.
type LeadRequest struct {
	Name       *string            `json:"name"`
	Email      *string            `json:"email"`
	Phone      *string            `json:"phone"`
	Company    *string            `json:"company"`
	Source     *string            `json:"source"`
	Status     *domain.LeadStatus `json:"status"`
	Notes      *string            `json:"notes"`
	AssignedTo *string            `json:"assignedTo"`
}

// LeadResponse response.
type LeadResponse struct {
	ID             string            `json:"id"`
	OrganizationID *string           `json:"organization_id,omitempty"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	Company        string            `json:"company"`
	Source         string            `json:"source"`
	Status         domain.LeadStatus `json:"status"`
	Notes          string            `json:"notes"`
	AssignedTo     string            `json:"assignedTo"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// LeadListResponse wraps a page of leads.
type LeadListResponse struct {
	Items    []LeadResponse `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
