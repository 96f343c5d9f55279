package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-access/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionRefreshed EventType = "session_refreshed"
	EventSessionRevoked   EventType = "session_revoked"
	EventLeadCreated      EventType = "lead_created"
	EventLeadUpdated      EventType = "lead_updated"
	EventLeadDeleted      EventType = "lead_deleted"
	EventLeadAssigned     EventType = "lead_assigned"
	EventStaffRoleChanged EventType = "staff_role_changed"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventSessionStarted,
	EventSessionRefreshed,
	EventSessionRevoked,
	EventLeadCreated,
	EventLeadUpdated,
	EventLeadDeleted,
	EventLeadAssigned,
	EventStaffRoleChanged,
}

// Actor identifies who caused an event.
type Actor struct {
	UserID string           `json:"user_id"`
	Role   domain.StaffRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subjectID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionPayload describes a token pair lifecycle change.
type SessionPayload struct {
	AccessTokenID  string `json:"access_token_id,omitempty"`
	RefreshTokenID string `json:"refresh_token_id,omitempty"`
}

// LeadAssignedPayload payload.
type LeadAssignedPayload struct {
	PreviousAssignee string `json:"previous_assignee,omitempty"`
	NewAssignee      string `json:"new_assignee"`
}

// LeadChangedPayload payload.
type LeadChangedPayload struct {
	Status domain.LeadStatus `json:"status"`
	Name   string            `json:"name"`
}

// StaffRoleChangedPayload payload. An empty NewRole means the record was removed.
type StaffRoleChangedPayload struct {
	OldRole domain.StaffRole `json:"old_role,omitempty"`
	NewRole domain.StaffRole `json:"new_role,omitempty"`
}
