// handlers/admin_routes.go
package handlers

import (
	"time"

	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

type adjustStarsRequest struct {
	Delta int64  `json:"delta"`
	Note  string `json:"note"`
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

type createProposalRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EndDate     time.Time `json:"end_date"`
}

// SetupAdminRoutes registers admin-only operations; r must already enforce the admin role.
func SetupAdminRoutes(r fiber.Router, engine *services.Engine) {
	r.Post("/users/:id/stars", func(c *fiber.Ctx) error {
		var req adjustStarsRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		entry, err := engine.AdjustStars(c.UserContext(), c.Params("id"), req.Delta, req.Note)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"transaction": entry, "balance": entry.BalanceAfter})
	})

	r.Post("/users/:id/badges/:badge_id", func(c *fiber.Ctx) error {
		granted, err := engine.AwardBadgeManually(c.UserContext(), c.Params("id"), c.Params("badge_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"granted": granted})
	})

	r.Post("/users/:id/vip", func(c *fiber.Ctx) error {
		var req flagRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		u, err := engine.SetVIP(c.UserContext(), c.Params("id"), req.Enabled)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": u.ID, "has_vip_access": u.HasVIPAccess})
	})

	r.Post("/users/:id/stars-enabled", func(c *fiber.Ctx) error {
		var req flagRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		u, err := engine.SetStarsEnabled(c.UserContext(), c.Params("id"), req.Enabled)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": u.ID, "stars_enabled": u.StarsEnabled})
	})

	r.Post("/proposals", func(c *fiber.Ctx) error {
		var req createProposalRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		p, err := engine.CreateProposal(c.UserContext(), services.NewProposal{
			Title:       req.Title,
			Description: req.Description,
			CreatorID:   middleware.UserID(c),
			EndDate:     req.EndDate,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Post("/proposals/:id/close", func(c *fiber.Ctx) error {
		p, err := engine.CloseProposal(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
}
