package auth

import (
	"errors"

	apperrors "github.com/spec-kit/crm-access/pkg/util"
)

// Token verification failures. These stay internal: Denial collapses all of
// them into the same unauthorized response.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrWrongTokenKind   = errors.New("unexpected token kind")
	ErrRevoked          = errors.New("token revoked")
	ErrInvalidSubject   = errors.New("invalid token subject")
)

// Gate failures.
var (
	ErrMissingCredential    = errors.New("missing credential")
	ErrInsufficientRole     = errors.New("insufficient role")
	ErrNotOwner             = errors.New("caller does not own resource")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrDataStoreUnavailable = errors.New("data store unavailable")
)

// Denial maps an auth failure onto the response the client is allowed to
// see. Unrecognized errors become internal errors.
func Denial(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrWrongTokenKind),
		errors.Is(err, ErrRevoked),
		errors.Is(err, ErrInvalidSubject):
		return apperrors.NewUnauthorized("unauthorized")
	case errors.Is(err, ErrInsufficientRole), errors.Is(err, ErrNotOwner):
		return apperrors.NewForbidden("forbidden")
	case errors.Is(err, ErrResourceNotFound):
		return apperrors.NewNotFound("resource", nil)
	case errors.Is(err, ErrDataStoreUnavailable):
		return apperrors.NewUnavailable(err)
	}
	return apperrors.NewInternalError(err)
}

// reason returns a short label for logs and metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrWrongTokenKind):
		return "wrong_token_kind"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrInvalidSubject):
		return "invalid_subject"
	case errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrResourceNotFound):
		return "not_found"
	case errors.Is(err, ErrDataStoreUnavailable):
		return "data_store_unavailable"
	}
	return "internal"
}
