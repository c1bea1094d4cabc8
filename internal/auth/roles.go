package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/auth-service/internal/domain"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// RequireRole ensures the authenticated caller has one of the allowed roles.
// With no roles it only requires an identity. It panics on an unknown role.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		if !role.Valid() {
			panic(fmt.Sprintf("auth: unknown role %q", role))
		}
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return Unauthorized(c)
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
