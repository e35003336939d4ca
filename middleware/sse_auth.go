// middleware/sse_auth.go
package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware authenticates EventSource requests, which cannot set
// headers, from a `token` query parameter holding a user JWT.
//
// Usage:
//
//	app.Get("/stream/wallet", middleware.SSEAuthMiddleware(secret, log), handler)
func SSEAuthMiddleware(jwtSecret string, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		if jwtSecret == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "stream authentication is not configured",
			})
		}

		claims, err := ParseUserToken(jwtSecret, token)
		if err != nil {
			log.Warn("sse token rejected", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("auth_via", authViaJWT)
		c.Locals("user_id", claims.Subject)
		c.Locals("user_roles", claims.Roles)
		return c.Next()
	}
}
