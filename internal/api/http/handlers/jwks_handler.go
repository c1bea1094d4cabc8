package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/auth-service/internal/auth"
)

// JWKSHandler publishes the access-token verification keys.
type JWKSHandler struct {
	keys auth.KeyProvider
}

func NewJWKSHandler(keys auth.KeyProvider) *JWKSHandler {
	return &JWKSHandler{keys: keys}
}

// Keys handles GET /.well-known/jwks.json.
func (h *JWKSHandler) Keys(c *fiber.Ctx) error {
	set, err := auth.PublishedKeySet(h.keys)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.JSON(set)
}

// Root handles GET /.
func Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Hello from auth service"})
}
