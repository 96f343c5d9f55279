package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/events"
	"github.com/spec-kit/crm-access/internal/repository"
	apperrors "github.com/spec-kit/crm-access/pkg/util"
)

// Session is an issued access/refresh token pair.
type Session struct {
	User    *domain.User
	Access  auth.IssuedToken
	Refresh auth.IssuedToken
}

// AuthService coordinates login, refresh and logout flows.
type AuthService struct {
	users       repository.UserRepository
	roles       auth.RoleSource
	tokens      *auth.TokenManager
	revocations auth.RevocationList
	dispatcher  events.Dispatcher
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Roles       auth.RoleSource
	Tokens      *auth.TokenManager
	Revocations auth.RevocationList
	Dispatcher  events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		roles:       deps.Roles,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		dispatcher:  deps.Dispatcher,
	}
}

// Login authenticates an operator by email and password. Unknown accounts,
// suspended accounts and wrong passwords all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			auth.BurnPasswordCheck(password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewUnavailable(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active() {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	role, err := s.sessionRole(ctx, user)
	if err != nil {
		return nil, err
	}
	session, err := s.issueSession(user, role)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventSessionStarted, user, session)
	return session, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed atomically, so of several concurrent exchanges only one succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, auth.Denial(auth.ErrMissingCredential)
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, auth.Denial(err)
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.Denial(auth.ErrInvalidSubject)
		}
		return nil, apperrors.NewUnavailable(err)
	}
	if !user.Active() {
		return nil, auth.Denial(auth.ErrInvalidSubject)
	}

	role, err := s.sessionRole(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.consume(ctx, claims); err != nil {
		return nil, err
	}
	session, err := s.issueSession(user, role)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventSessionRefreshed, user, session)
	return session, nil
}

// Logout revokes the caller's access token and, when it belongs to the same
// caller, the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal, refreshToken string) error {
	if principal == nil || principal.Claims == nil {
		return auth.Denial(auth.ErrMissingCredential)
	}
	if err := s.revoke(ctx, principal.Claims); err != nil {
		return err
	}

	payload := events.SessionPayload{AccessTokenID: principal.Claims.ID}
	if strings.TrimSpace(refreshToken) != "" {
		claims, err := s.tokens.VerifyRefresh(refreshToken)
		if err == nil && claims.Subject == principal.SubjectID() {
			if err := s.revoke(ctx, claims); err != nil {
				return err
			}
			payload.RefreshTokenID = claims.ID
		}
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventSessionRevoked, principal.SubjectID(),
			events.Actor{UserID: principal.SubjectID(), Role: principal.Role()}, payload))
	}
	return nil
}

func (s *AuthService) issueSession(user *domain.User, role domain.StaffRole) (*Session, error) {
	user.Role = role
	subject := auth.Subject{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  role,
	}
	if user.OrganizationID != nil {
		subject.OrganizationID = *user.OrganizationID
	}

	access, err := s.tokens.Issue(subject)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("issue access token: %w", err))
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("issue refresh token: %w", err))
	}
	return &Session{User: user, Access: access, Refresh: refresh}, nil
}

// sessionRole is the role a new token carries: the staff role record when
// one exists, otherwise the base STAFF role.
func (s *AuthService) sessionRole(ctx context.Context, user *domain.User) (domain.StaffRole, error) {
	if s.roles == nil {
		return user.Role, nil
	}
	role, err := s.roles.GetRoleByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StaffRoleStaff, nil
		}
		return "", apperrors.NewUnavailable(err)
	}
	if !role.Valid() {
		return domain.StaffRoleStaff, nil
	}
	return role, nil
}

// consume revokes a refresh token, failing when another exchange got there
// first.
func (s *AuthService) consume(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil {
		return nil
	}
	won, err := s.revocations.Consume(ctx, claims.ID, claims.ExpiresAtTime())
	if err != nil {
		return auth.Denial(fmt.Errorf("%w: %w", auth.ErrDataStoreUnavailable, err))
	}
	if !won {
		return auth.Denial(auth.ErrRevoked)
	}
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return apperrors.NewUnavailable(err)
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, session *Session) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(eventType, user.ID,
		events.Actor{UserID: user.ID, Role: user.Role},
		events.SessionPayload{AccessTokenID: session.Access.ID, RefreshTokenID: session.Refresh.ID}))
}
