package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

// RequireAuthenticated ensures a bearer principal was resolved.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CallerFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireInternalCaller verifies the service assertion guarding /sso/internal routes.
// Callers are trusted once verified; no token ownership check follows.
func RequireInternalCaller(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("internal caller assertion required")
		}

		claims, err := tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperrors.NewForbidden("invalid internal caller assertion")
		}
		c.Locals(internalCallerKey, claims)
		return c.Next()
	}
}
