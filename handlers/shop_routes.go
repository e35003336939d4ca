// handlers/shop_routes.go
package handlers

import (
	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

type spendRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// SetupShopRoutes registers item, VIP and star-spending routes.
func SetupShopRoutes(r fiber.Router, engine *services.Engine) {
	r.Get("/items", func(c *fiber.Ctx) error {
		items, err := engine.Catalog.Items(c.UserContext(), services.ItemFilter{
			Category:   c.Query("category"),
			ActiveOnly: true,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"items": items})
	})

	r.Get("/me/items", func(c *fiber.Ctx) error {
		items, err := engine.OwnedItems(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"items": items})
	})

	r.Post("/items/:id/buy", func(c *fiber.Ctx) error {
		res, err := engine.BuyItem(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Post("/vip/unlock", func(c *fiber.Ctx) error {
		res, err := engine.UnlockVIP(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Post("/me/stars/spend", func(c *fiber.Ctx) error {
		var req spendRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		entry, err := engine.SpendStars(c.UserContext(), middleware.UserID(c), req.Amount, req.Description)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"transaction": entry, "balance": entry.BalanceAfter})
	})
}
