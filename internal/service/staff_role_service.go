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

// ProvisionInput describes a new operator account.
type ProvisionInput struct {
	Name           string
	Email          string
	Password       string
	Role           domain.StaffRole
	OrganizationID *string
}

// StaffRoleService manages operator accounts and their staff role records.
// Writes touching both the user row and the role record run in one
// transaction so users.role never outlives or precedes its record.
type StaffRoleService struct {
	users      repository.UserRepository
	roles      repository.StaffRoleRepository
	accounts   repository.AccountStore
	dispatcher events.Dispatcher
	bcryptCost int
}

// NewStaffRoleService builds the service.
func NewStaffRoleService(users repository.UserRepository, roles repository.StaffRoleRepository, accounts repository.AccountStore, dispatcher events.Dispatcher, bcryptCost int) *StaffRoleService {
	return &StaffRoleService{users: users, roles: roles, accounts: accounts, dispatcher: dispatcher, bcryptCost: bcryptCost}
}

// Get returns the role record of userID.
func (s *StaffRoleService) Get(ctx context.Context, userID string) (*domain.StaffRoleRecord, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.NewNotFound("staff role", nil)
	}
	record, err := s.roles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff role", nil)
		}
		return nil, apperrors.NewUnavailable(err)
	}
	return record, nil
}

// Set assigns role to userID. The user's account role is kept in step so the
// next issued token carries it.
func (s *StaffRoleService) Set(ctx context.Context, actor *auth.Principal, userID string, role domain.StaffRole) (*domain.StaffRoleRecord, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	var previous domain.StaffRole
	record := &domain.StaffRoleRecord{UserID: userID, Role: role}
	err := s.accounts.InTx(ctx, func(tx repository.Accounts) error {
		if existing, err := tx.Roles.Get(ctx, userID); err == nil {
			previous = existing.Role
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err := tx.Roles.Upsert(ctx, record); err != nil {
			return err
		}
		return syncAccountRole(ctx, tx.Users, userID, role)
	})
	if err != nil {
		return nil, accountStoreError(err, "user")
	}

	s.publish(ctx, actor, userID, events.StaffRoleChangedPayload{OldRole: previous, NewRole: role})
	return record, nil
}

// Delete removes the role record of userID and demotes the account to STAFF.
// The user keeps access to leads they own.
func (s *StaffRoleService) Delete(ctx context.Context, actor *auth.Principal, userID string) error {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	err = s.accounts.InTx(ctx, func(tx repository.Accounts) error {
		if err := tx.Roles.Delete(ctx, userID); err != nil {
			return err
		}
		return syncAccountRole(ctx, tx.Users, userID, domain.StaffRoleStaff)
	})
	if err != nil {
		return accountStoreError(err, "staff role")
	}
	s.publish(ctx, actor, userID, events.StaffRoleChangedPayload{OldRole: record.Role})
	return nil
}

// ProvisionUser creates an operator account with a role record.
func (s *StaffRoleService) ProvisionUser(ctx context.Context, actor *auth.Principal, input ProvisionInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if !strings.Contains(email, "@") {
		details["email"] = "invalid"
	}
	if !input.Role.Valid() {
		details["role"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnavailable(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"password": "too short"})
	}

	user := &domain.User{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           input.Role,
		OrganizationID: input.OrganizationID,
		Status:         domain.UserStatusActive,
	}
	err = s.accounts.InTx(ctx, func(tx repository.Accounts) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		return tx.Roles.Upsert(ctx, &domain.StaffRoleRecord{UserID: user.ID, Role: input.Role})
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewUnavailable(err)
	}

	s.publish(ctx, actor, user.ID, events.StaffRoleChangedPayload{NewRole: input.Role})
	return user, nil
}

func syncAccountRole(ctx context.Context, users repository.UserRepository, userID string, role domain.StaffRole) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}
	user.Role = role
	return users.Update(ctx, user)
}

func accountStoreError(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewUnavailable(err)
}

func (s *StaffRoleService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.NewNotFound("user", nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewUnavailable(err)
	}
	return user, nil
}

func (s *StaffRoleService) publish(ctx context.Context, actor *auth.Principal, userID string, payload events.StaffRoleChangedPayload) {
	if s.dispatcher == nil {
		return
	}
	var who events.Actor
	if actor != nil {
		who = events.Actor{UserID: actor.SubjectID(), Role: actor.Role()}
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventStaffRoleChanged, userID, who, payload))
}
