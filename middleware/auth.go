// middleware/auth.go
package middleware

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware resolves the acting user. Gateway requests carry the
// identity in X-User-ID / X-User-Roles; JWT requests were resolved by
// GatewayAuthMiddleware already.
func UserContextMiddleware(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if via, _ := c.Locals("auth_via").(string); via != authViaJWT {
			c.Locals("user_id", strings.TrimSpace(c.Get("X-User-ID")))
			c.Locals("user_roles", splitRoles(c.Get("X-User-Roles")))
			c.Locals("username", strings.TrimSpace(c.Get("X-Username")))
			c.Locals("first_name", strings.TrimSpace(c.Get("X-First-Name")))
		}

		if UserID(c) == "" {
			log.Warn("user id missing on secured route", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing user identity",
			})
		}
		return c.Next()
	}
}

// RequireRole rejects users without role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !slices.Contains(Roles(c), role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func Roles(c *fiber.Ctx) []string {
	roles, _ := c.Locals("user_roles").([]string)
	return roles
}

func Username(c *fiber.Ctx) string {
	name, _ := c.Locals("username").(string)
	return name
}

func FirstName(c *fiber.Ctx) string {
	name, _ := c.Locals("first_name").(string)
	return name
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
