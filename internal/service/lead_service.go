package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/events"
	"github.com/spec-kit/crm-access/internal/repository"
	apperrors "github.com/spec-kit/crm-access/pkg/util"
)

// LeadInput carries writable lead fields. Nil pointers leave a field unchanged
// on update.
type LeadInput struct {
	Name       *string
	Email      *string
	Phone      *string
	Company    *string
	Source     *string
	Status     *domain.LeadStatus
	Notes      *string
	AssignedTo *string
}

// LeadListParams are caller-supplied listing filters.
type LeadListParams struct {
	Statuses   []domain.LeadStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// LeadService implements lead CRUD on top of the ownership rules.
type LeadService struct {
	leads      repository.LeadRepository
	ownership  *auth.OwnershipChecker
	dispatcher events.Dispatcher
}

// NewLeadService builds the service.
func NewLeadService(leads repository.LeadRepository, ownership *auth.OwnershipChecker, dispatcher events.Dispatcher) *LeadService {
	return &LeadService{leads: leads, ownership: ownership, dispatcher: dispatcher}
}

// Fetch loads a lead for the ownership check. Ids that are not UUIDs cannot
// exist and are reported as absent.
func (s *LeadService) Fetch(ctx context.Context, id string) (auth.OwnedResource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// List returns leads visible under scope.
func (s *LeadService) List(ctx context.Context, scope auth.ListScope, params LeadListParams) ([]domain.Lead, error) {
	for _, status := range params.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": status})
		}
	}
	filter := repository.LeadFilter{
		Statuses:   params.Statuses,
		SearchTerm: params.SearchTerm,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}
	if !scope.Unrestricted() {
		owner := scope.OwnerID
		filter.AssignedTo = &owner
	}
	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewUnavailable(err)
	}
	return leads, nil
}

// Create stores a new lead. It is assigned to the caller unless a privileged
// caller names another assignee.
func (s *LeadService) Create(ctx context.Context, principal *auth.Principal, input LeadInput) (*domain.Lead, error) {
	lead := &domain.Lead{
		Status:     domain.LeadStatusNew,
		AssignedTo: principal.SubjectID(),
	}
	if org := principal.Claims.OrganizationID; org != "" {
		lead.OrganizationID = &org
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if err := s.applyInput(ctx, principal, lead, input); err != nil {
		return nil, err
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, events.EventLeadCreated, principal, lead.ID, events.LeadChangedPayload{Status: lead.Status, Name: lead.Name})
	if lead.AssignedTo != principal.SubjectID() {
		s.publish(ctx, events.EventLeadAssigned, principal, lead.ID, events.LeadAssignedPayload{NewAssignee: lead.AssignedTo})
	}
	return lead, nil
}

// Update applies input to a lead the caller has already been authorized for.
func (s *LeadService) Update(ctx context.Context, principal *auth.Principal, lead *domain.Lead, input LeadInput) (*domain.Lead, error) {
	previous := lead.AssignedTo
	if err := s.applyInput(ctx, principal, lead, input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(lead.Name) == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("lead", nil)
		}
		return nil, storeError(err)
	}

	s.publish(ctx, events.EventLeadUpdated, principal, lead.ID, events.LeadChangedPayload{Status: lead.Status, Name: lead.Name})
	if previous != lead.AssignedTo {
		s.publish(ctx, events.EventLeadAssigned, principal, lead.ID, events.LeadAssignedPayload{
			PreviousAssignee: previous,
			NewAssignee:      lead.AssignedTo,
		})
	}
	return lead, nil
}

// Delete removes a lead the caller has already been authorized for.
func (s *LeadService) Delete(ctx context.Context, principal *auth.Principal, lead *domain.Lead) error {
	if err := s.leads.Delete(ctx, lead.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("lead", nil)
		}
		return apperrors.NewUnavailable(err)
	}
	s.publish(ctx, events.EventLeadDeleted, principal, lead.ID, events.LeadChangedPayload{Status: lead.Status, Name: lead.Name})
	return nil
}

func (s *LeadService) applyInput(ctx context.Context, principal *auth.Principal, lead *domain.Lead, input LeadInput) error {
	if input.Status != nil {
		if !input.Status.Valid() {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		lead.Status = *input.Status
	}
	if input.AssignedTo != nil {
		assignee := strings.TrimSpace(*input.AssignedTo)
		if assignee == "" {
			return apperrors.NewValidationError("assignedTo must not be empty", nil)
		}
		if _, err := uuid.Parse(assignee); err != nil {
			return apperrors.NewValidationError("assignedTo must be a user id", nil)
		}
		if assignee != lead.AssignedTo {
			allowed, err := s.ownership.CanReassign(ctx, principal.SubjectID())
			if err != nil {
				return auth.Denial(err)
			}
			if !allowed {
				return auth.Denial(auth.ErrInsufficientRole)
			}
			lead.AssignedTo = assignee
		}
	}

	setString(&lead.Name, input.Name)
	setString(&lead.Email, input.Email)
	setString(&lead.Phone, input.Phone)
	setString(&lead.Company, input.Company)
	setString(&lead.Source, input.Source)
	setString(&lead.Notes, input.Notes)
	return nil
}

func (s *LeadService) publish(ctx context.Context, eventType events.EventType, principal *auth.Principal, leadID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(eventType, leadID,
		events.Actor{UserID: principal.SubjectID(), Role: principal.Role()}, payload))
}

// storeError maps a failed lead write. An assignee that is not a user
// violates the foreign key.
func storeError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return apperrors.NewValidationError("assignedTo must reference an existing user", nil)
	}
	return apperrors.NewUnavailable(err)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
