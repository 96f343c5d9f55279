package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/crm-access/internal/domain"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenOptions configures a TokenManager.
type TokenOptions struct {
	// Secret signs new tokens and verifies existing ones.
	Secret string
	// PreviousSecrets are accepted for verification only, so tokens signed
	// before a key rotation stay valid until they expire.
	PreviousSecrets []string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenManager handles issuing and validating JWT tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenManager struct {
	signingKey []byte
	verifyKeys [][]byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(opts TokenOptions) (*TokenManager, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("token signing secret required")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	keys := [][]byte{[]byte(opts.Secret)}
	for _, prev := range opts.PreviousSecrets {
		if prev == "" || prev == opts.Secret {
			continue
		}
		keys = append(keys, []byte(prev))
	}

	return &TokenManager{
		signingKey: []byte(opts.Secret),
		verifyKeys: keys,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
	}, nil
}

// Subject describes the identity an access token is issued for.
type Subject struct {
	ID             string
	Email          string
	Name           string
	Role           domain.StaffRole
	OrganizationID string
}

func (s Subject) validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: id required", ErrInvalidSubject)
	case strings.TrimSpace(s.Email) == "":
		return fmt.Errorf("%w: email required", ErrInvalidSubject)
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name required", ErrInvalidSubject)
	case !s.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidSubject, s.Role)
	}
	return nil
}

// Claims describes JWT payload. Access tokens carry the identity fields and
// no type; refresh tokens carry only the subject and type "refresh".
type Claims struct {
	Email          string           `json:"email,omitempty"`
	Name           string           `json:"name,omitempty"`
	Role           domain.StaffRole `json:"role,omitempty"`
	OrganizationID string           `json:"organizationId,omitempty"`
	Type           domain.TokenKind `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Kind reports which verification path the claims belong to.
func (c *Claims) Kind() domain.TokenKind {
	if c.Type == "" {
		return domain.TokenKindAccess
	}
	return c.Type
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedToken is a signed token together with the metadata callers need for
// cookies and revocation.
type IssuedToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issue signs an access token for the subject.
func (tm *TokenManager) Issue(subject Subject) (IssuedToken, error) {
	if err := subject.validate(); err != nil {
		return IssuedToken{}, err
	}
	return tm.sign(&Claims{
		Email:          subject.Email,
		Name:           subject.Name,
		Role:           subject.Role,
		OrganizationID: subject.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject.ID,
		},
	}, tm.accessTTL)
}

// IssueRefresh signs a refresh token for the subject id.
func (tm *TokenManager) IssueRefresh(subjectID string) (IssuedToken, error) {
	if strings.TrimSpace(subjectID) == "" {
		return IssuedToken{}, fmt.Errorf("%w: id required", ErrInvalidSubject)
	}
	return tm.sign(&Claims{
		Type: domain.TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subjectID,
		},
	}, tm.refreshTTL)
}

func (tm *TokenManager) sign(claims *Claims, ttl time.Duration) (IssuedToken, error) {
	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.signingKey)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: tokenString, ID: claims.ID, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify validates an access token and returns its claims. Refresh tokens
// are rejected.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != domain.TokenKindAccess {
		return nil, ErrWrongTokenKind
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrMalformedToken)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token. Access tokens are rejected.
func (tm *TokenManager) VerifyRefresh(tokenStr string) (*Claims, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != domain.TokenKindRefresh {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTTL() time.Duration {
	return tm.refreshTTL
}

func (tm *TokenManager) parse(tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformedToken
	}

	var (
		claims *Claims
		err    error
	)
	// The current key is tried first; previous keys only matter for a
	// signature mismatch.
	for _, key := range tm.verifyKeys {
		claims, err = tm.parseWithKey(tokenStr, key)
		if err == nil || !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing sub or iat", ErrMalformedToken)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: exp not after iat", ErrMalformedToken)
	}
	return claims, nil
}

func (tm *TokenManager) parseWithKey(tokenStr string, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return fmt.Errorf("%w: %w", ErrMalformedToken, err)
}
