// handlers/router.go
package handlers

import (
	"log/slog"
	"strings"

	"gamification-engine/config"
	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the HTTP surface over the engine.
func NewApp(cfg *config.Config, engine *services.Engine, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "gamification-engine",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			return respondError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(withLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Referral-Code",
		MaxAge:       86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// EventSource cannot send headers; registered before the header auth.
	SetupStreamRoutes(app, engine, cfg.JWTSecret, log)

	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken, cfg.JWTSecret, log))

	secured := app.Group("/",
		middleware.UserContextMiddleware(log),
		EnsureUserMiddleware(engine),
	)
	SetupProgressionRoutes(secured, engine)
	SetupShopRoutes(secured, engine)
	SetupDAORoutes(secured, engine)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	SetupAdminRoutes(admin, engine)

	return app
}

// EnsureUserMiddleware creates the acting user on first contact. An optional
// referral code comes from X-Referral-Code or the ref query parameter.
func EnsureUserMiddleware(engine *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := c.Get("X-Referral-Code")
		if ref == "" {
			ref = c.Query("ref")
		}
		_, _, err := engine.EnsureUser(c.UserContext(), services.NewUser{
			ID:           middleware.UserID(c),
			Username:     middleware.Username(c),
			FirstName:    middleware.FirstName(c),
			ReferralCode: ref,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}
