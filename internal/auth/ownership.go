package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-access/internal/domain"
)

// RoleSource resolves the persisted staff role for a user. A missing role
// record is reported as pgx.ErrNoRows.
type RoleSource interface {
	GetRoleByUserID(ctx context.Context, userID string) (domain.StaffRole, error)
}

// OwnedResource is a record with a single owning user.
type OwnedResource interface {
	OwnerID() string
}

// ResourceFetcher loads a resource by id. Absence is reported as
// pgx.ErrNoRows or ErrResourceNotFound.
type ResourceFetcher func(ctx context.Context, id string) (OwnedResource, error)

// ListScope is the filter a listing endpoint must apply. An empty OwnerID
// means no filter.
type ListScope struct {
	OwnerID string
}

// Unrestricted reports whether the caller may list every record.
func (s ListScope) Unrestricted() bool {
	return s.OwnerID == ""
}

// OwnershipChecker decides resource-scoped access from the caller's stored
// role and the resource owner. Roles are re-read on every call.
type OwnershipChecker struct {
	roles RoleSource
}

// NewOwnershipChecker constructs a checker.
func NewOwnershipChecker(roles RoleSource) *OwnershipChecker {
	return &OwnershipChecker{roles: roles}
}

// Authorize returns the resource when callerID may act on it. A caller
// without a role record is limited to resources they own.
func (o *OwnershipChecker) Authorize(ctx context.Context, callerID, resourceID string, fetch ResourceFetcher) (OwnedResource, error) {
	role, err := o.storedRole(ctx, callerID)
	if err != nil {
		return nil, err
	}

	resource, err := fetch(ctx, resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrResourceNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, storeFailure(ctx, err)
	}
	if resource == nil {
		return nil, ErrResourceNotFound
	}

	if IsPrivilegedForLeads(role) {
		return resource, nil
	}
	if resource.OwnerID() == "" || resource.OwnerID() != callerID {
		return nil, ErrNotOwner
	}
	return resource, nil
}

// LeadScope builds the listing filter for callerID. It uses SeesAllLeads,
// which also exempts managers.
func (o *OwnershipChecker) LeadScope(ctx context.Context, callerID string) (ListScope, error) {
	role, err := o.storedRole(ctx, callerID)
	if err != nil {
		return ListScope{}, err
	}
	if SeesAllLeads(role) {
		return ListScope{}, nil
	}
	return ListScope{OwnerID: callerID}, nil
}

// CanReassign reports whether callerID may move a resource to another owner.
func (o *OwnershipChecker) CanReassign(ctx context.Context, callerID string) (bool, error) {
	role, err := o.storedRole(ctx, callerID)
	if err != nil {
		return false, err
	}
	return IsPrivilegedForLeads(role), nil
}

// storedRole returns "" when the user has no role record.
func (o *OwnershipChecker) storedRole(ctx context.Context, userID string) (domain.StaffRole, error) {
	if o == nil || o.roles == nil {
		return "", nil
	}
	role, err := o.roles.GetRoleByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", storeFailure(ctx, err)
	}
	if !role.Valid() {
		return "", nil
	}
	return role, nil
}

// storeFailure keeps cancellation distinct from an unavailable store.
func storeFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrDataStoreUnavailable, err)
}
