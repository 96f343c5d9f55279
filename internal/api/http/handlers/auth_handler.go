package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-access/internal/api/dto"
	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/config"
	"github.com/spec-kit/crm-access/internal/service"
)

// AuthHandler exposes session endpoints.
type AuthHandler struct {
	auth *service.AuthService
	cfg  config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cfg: cfg}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setSessionCookies(c, session)
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Refresh handles POST /auth/refresh. The refresh cookie wins over the body.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(h.cfg.RefreshCookieName)
	if token == "" {
		var req dto.RefreshRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid payload")
			}
		}
		token = req.RefreshToken
	}

	session, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		h.clearSessionCookies(c)
		return err
	}
	h.setSessionCookies(c, session)
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Denial(auth.ErrMissingCredential)
	}
	if err := h.auth.Logout(c.UserContext(), principal, c.Cookies(h.cfg.RefreshCookieName)); err != nil {
		return err
	}
	h.clearSessionCookies(c)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Denial(auth.ErrMissingCredential)
	}
	claims := principal.Claims
	return c.JSON(fiber.Map{"data": dto.MeResponse{
		ID:             claims.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
		IssuedAt:       claims.IssuedAtTime(),
		ExpiresAt:      claims.ExpiresAtTime(),
	}})
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, session *service.Session) {
	c.Cookie(h.cookie(h.cfg.AccessCookieName, session.Access.Token, session.Access.ExpiresAt, "/"))
	c.Cookie(h.cookie(h.cfg.RefreshCookieName, session.Refresh.Token, session.Refresh.ExpiresAt, "/auth"))
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	expired := time.Unix(0, 0)
	c.Cookie(h.cookie(h.cfg.AccessCookieName, "", expired, "/"))
	c.Cookie(h.cookie(h.cfg.RefreshCookieName, "", expired, "/auth"))
}

func (h *AuthHandler) cookie(name, value string, expires time.Time, path string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		User:    userResponse(session.User),
		Access:  dto.TokenResponse{Token: session.Access.Token, ExpiresAt: session.Access.ExpiresAt},
		Refresh: dto.TokenResponse{Token: session.Refresh.Token, ExpiresAt: session.Refresh.ExpiresAt},
	}
}
