package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-access/internal/domain"
)

const (
	principalKey = "auth_principal"
	resourceKey  = "auth_resource"
)

// Principal represents the authenticated caller.
type Principal struct {
	Claims *Claims
}

// SubjectID returns the caller's user id.
func (p *Principal) SubjectID() string {
	return p.Claims.Subject
}

// Role returns the role carried by the access token.
func (p *Principal) Role() domain.StaffRole {
	return p.Claims.Role
}

// Credentials are the raw token carriers of a request.
type Credentials struct {
	Authorization string
	Cookie        string
}

// DenialRecorder counts denied requests by reason.
type DenialRecorder interface {
	RecordDenial(reason string)
}

// GateOptions bundles Gate dependencies. Revocations, Roles and Metrics are
// optional.
type GateOptions struct {
	Tokens      *TokenManager
	Routes      *RouteTable
	Revocations RevocationList
	Roles       RoleSource
	CookieName  string
	Logger      *zap.Logger
	Metrics     DenialRecorder
}

// Gate authenticates requests and enforces route and ownership policy.
type Gate struct {
	tokens     *TokenManager
	routes     *RouteTable
	revoked    RevocationList
	ownership  *OwnershipChecker
	cookieName string
	logger     *zap.Logger
	metrics    DenialRecorder
}

// NewGate constructs the gate.
func NewGate(opts GateOptions) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := opts.Routes
	if routes == nil {
		routes = DefaultRouteTable()
	}
	return &Gate{
		tokens:     opts.Tokens,
		routes:     routes,
		revoked:    opts.Revocations,
		ownership:  NewOwnershipChecker(opts.Roles),
		cookieName: opts.CookieName,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Ownership exposes the gate's ownership checker to services.
func (g *Gate) Ownership() *OwnershipChecker {
	return g.ownership
}

// Evaluate runs route policy for path. It returns a nil principal and nil
// error for public paths.
func (g *Gate) Evaluate(ctx context.Context, path string, creds Credentials) (*Principal, error) {
	if !g.routes.Protected(path) {
		return nil, nil
	}
	principal, err := g.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !g.routes.Allows(path, principal.Role()) {
		return nil, ErrInsufficientRole
	}
	return principal, nil
}

// Authenticate resolves the caller from its credentials without applying any
// route policy.
func (g *Gate) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	raw := extractToken(creds)
	if raw == "" {
		return nil, ErrMissingCredential
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	if g.revoked != nil && claims.ID != "" {
		revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, storeFailure(ctx, err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return &Principal{Claims: claims}, nil
}

// Handle is the fiber middleware form of Evaluate.
func (g *Gate) Handle(c *fiber.Ctx) error {
	principal, err := g.Evaluate(c.UserContext(), c.Path(), g.credentials(c))
	if err != nil {
		return g.deny(c, err)
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

// RequireOwnership loads the resource named by the route parameter and lets
// the request through only if the caller may act on it. The loaded resource
// is available to handlers through ResourceFromContext.
func (g *Gate) RequireOwnership(param string, fetch ResourceFetcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return g.deny(c, ErrMissingCredential)
		}
		resource, err := g.ownership.Authorize(c.UserContext(), principal.SubjectID(), c.Params(param), fetch)
		if err != nil {
			return g.deny(c, err)
		}
		c.Locals(resourceKey, resource)
		return c.Next()
	}
}

// RequireRoles ensures the principal's token role is one of allowed.
func (g *Gate) RequireRoles(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := newRoleSet(allowed...)
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return g.deny(c, ErrMissingCredential)
		}
		if len(allowedSet) > 0 && !allowedSet.has(principal.Role()) {
			return g.deny(c, ErrInsufficientRole)
		}
		return c.Next()
	}
}

// ListScope returns the lead listing filter for the current caller.
func (g *Gate) ListScope(c *fiber.Ctx) (ListScope, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return ListScope{}, g.deny(c, ErrMissingCredential)
	}
	scope, err := g.ownership.LeadScope(c.UserContext(), principal.SubjectID())
	if err != nil {
		return ListScope{}, g.deny(c, err)
	}
	return scope, nil
}

func (g *Gate) credentials(c *fiber.Ctx) Credentials {
	creds := Credentials{Authorization: c.Get(fiber.HeaderAuthorization)}
	if g.cookieName != "" {
		creds.Cookie = c.Cookies(g.cookieName)
	}
	return creds
}

func (g *Gate) deny(c *fiber.Ctx, err error) error {
	label := reason(err)
	if g.metrics != nil {
		g.metrics.RecordDenial(label)
	}
	fields := []zap.Field{
		zap.String("reason", label),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	}
	if errors.Is(err, ErrDataStoreUnavailable) {
		g.logger.Warn("access check failed", append(fields, zap.Error(err))...)
	} else {
		g.logger.Debug("access denied", append(fields, zap.Error(err))...)
	}
	return Denial(err)
}

// extractToken prefers a bearer header over the cookie.
func extractToken(creds Credentials) string {
	if header := strings.TrimSpace(creds.Authorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(creds.Cookie)
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ResourceFromContext retrieves the resource loaded by RequireOwnership.
func ResourceFromContext[T OwnedResource](c *fiber.Ctx) (T, bool) {
	var zero T
	val := c.Locals(resourceKey)
	if val == nil {
		return zero, false
	}
	resource, ok := val.(T)
	return resource, ok
}
