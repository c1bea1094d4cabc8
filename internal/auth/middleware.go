package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Behnamfe76/auth-service/internal/domain"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

const (
	identityKey = "auth_identity"

	// DefaultAccessCookie carries the access token when no bearer header is sent.
	DefaultAccessCookie = "accessToken"

	// placeholderToken is what browser clients send when their stored token is unset.
	placeholderToken = "undefined"
)

// TokenVerifier turns a raw access token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// AuthMiddleware validates access tokens and attaches the caller identity.
type AuthMiddleware struct {
	verifier   TokenVerifier
	cookieName string
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware. An empty cookieName selects DefaultAccessCookie.
func NewAuthMiddleware(verifier TokenVerifier, cookieName string, logger *zap.Logger) *AuthMiddleware {
	if cookieName == "" {
		cookieName = DefaultAccessCookie
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, cookieName: cookieName, logger: logger}
}

// Handle enforces authentication for protected routes. Every failure ends the
// request with the same 401 body; the failure kind is only logged.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := m.extract(c)
	if err == nil {
		var identity *domain.Identity
		identity, err = m.verifier.Verify(c.UserContext(), token)
		if err == nil {
			c.Locals(identityKey, identity)
			return c.Next()
		}
	}

	kind := apperrors.KindOf(err)
	m.logger.Debug("request authentication failed",
		zap.String("kind", kind.String()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return Unauthorized(c)
}

func (m *AuthMiddleware) extract(c *fiber.Ctx) (string, error) {
	if token := bearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		return token, nil
	}
	if token := c.Cookies(m.cookieName); token != "" {
		return token, nil
	}
	return "", apperrors.NewMissingCredential("missing access token")
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	token := strings.TrimSpace(parts[1])
	if token == placeholderToken {
		return ""
	}
	return token
}

// Unauthorized writes the generic 401 response used for every authentication failure.
func Unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{
		"code":    "UNAUTHORIZED",
		"message": http.StatusText(http.StatusUnauthorized),
	}})
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}
