package domain

import "time"

// LeadStatus tracks where a lead sits in the sales funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQualified LeadStatus = "QUALIFIED"
	LeadStatusWon       LeadStatus = "WON"
	LeadStatusLost      LeadStatus = "LOST"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

// Lead is a prospective customer record owned by one operator.
type Lead struct {
	ID             string
	OrganizationID *string
	Name           string
	Email          string
	Phone          string
	Company        string
	Source         string
	Status         LeadStatus
	Notes          string
	AssignedTo     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OwnerID returns the operator the lead is assigned to.
func (l *Lead) OwnerID() string {
	return l.AssignedTo
}
