// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	authViaGateway = "gateway"
	authViaJWT     = "jwt"
)

// GatewayAuthMiddleware accepts either the gateway's shared service token
// (identity then comes from X-User-* headers) or, when jwtSecret is set, a
// user JWT whose subject is the user id.
func GatewayAuthMiddleware(serviceToken, jwtSecret string, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			log.Warn("missing authorization header", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication token missing",
			})
		}

		if serviceToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(serviceToken)) == 1 {
			c.Locals("auth_via", authViaGateway)
			return c.Next()
		}

		if jwtSecret != "" {
			claims, err := ParseUserToken(jwtSecret, token)
			if err == nil {
				c.Locals("auth_via", authViaJWT)
				c.Locals("user_id", claims.Subject)
				c.Locals("user_roles", claims.Roles)
				c.Locals("username", claims.Username)
				return c.Next()
			}
			log.Warn("jwt rejected", "path", c.Path(), "error", err)
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid authentication token",
		})
	}
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
