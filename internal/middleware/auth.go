package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/image-service/internal/auth"
	"github.com/fathima-sithara/image-service/internal/utils"
)

const claimsKey = "claims"

type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return utils.JSONError(c, fiber.StatusUnauthorized, "missing authorization")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return utils.JSONError(c, fiber.StatusUnauthorized, "invalid authorization")
		}
		claims, err := verifier.VerifyToken(parts[1])
		if err != nil {
			return utils.JSONError(c, fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RequireRole must run after JWTAuth.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(claimsKey).(*auth.Claims)
		if !ok {
			return utils.JSONError(c, fiber.StatusUnauthorized, "missing authorization")
		}
		if claims.Role != role {
			return utils.JSONError(c, fiber.StatusForbidden, "forbidden")
		}
		return c.Next()
	}
}
