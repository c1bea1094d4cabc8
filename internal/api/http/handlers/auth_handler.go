package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/auth-service/internal/api/dto"
	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/service"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// CookieConfig controls the session cookies set by the auth endpoints.
type CookieConfig struct {
	Domain      string
	Secure      bool
	AccessName  string
	RefreshName string
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.AccessName == "" {
		c.AccessName = "accessToken"
	}
	if c.RefreshName == "" {
		c.RefreshName = "refreshToken"
	}
	return c
}

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies CookieConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies.withDefaults()}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	user, pair, err := h.auth.Register(c.UserContext(), req.UserData())
	if err != nil {
		return err
	}

	h.setSession(c, pair)
	return c.Status(http.StatusCreated).JSON(dto.IDResponse{ID: user.ID})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	user, pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}

	h.setSession(c, pair)
	return c.JSON(dto.IDResponse{ID: user.ID})
}

// Self handles GET /auth/self.
func (h *AuthHandler) Self(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.Unauthorized(c)
	}
	user, err := h.auth.Self(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Refresh handles POST /auth/refresh. The presented refresh token is revoked.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(h.cookies.RefreshName)
	if token == "" {
		return apperrors.NewMissingCredential("missing refresh token")
	}

	user, pair, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setSession(c, pair)
	return c.JSON(dto.IDResponse{ID: user.ID})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	if err := h.auth.Logout(c.UserContext(), identity, c.Cookies(h.cookies.RefreshName)); err != nil {
		return err
	}
	h.clearSession(c)
	return c.JSON(fiber.Map{})
}

func (h *AuthHandler) setSession(c *fiber.Ctx, pair *domain.TokenPair) {
	c.Cookie(h.cookie(h.cookies.AccessName, pair.AccessToken, pair.AccessExpiresAt, auth.AccessTokenTTL))
	c.Cookie(h.cookie(h.cookies.RefreshName, pair.RefreshToken, pair.RefreshExpiresAt, auth.RefreshTokenTTL))
}

func (h *AuthHandler) clearSession(c *fiber.Ctx) {
	for _, name := range []string{h.cookies.AccessName, h.cookies.RefreshName} {
		c.Cookie(h.cookie(name, "", time.Unix(0, 0), -1))
	}
}

// cookie builds an httpOnly, strict same-site cookie. A negative ttl expires it.
func (h *AuthHandler) cookie(name, value string, expires time.Time, ttl time.Duration) *fiber.Cookie {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}
