// handlers/progression_routes.go
package handlers

import (
	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressionRoutes registers profile, wallet, mission, daily bonus,
// invite and leaderboard routes on an authenticated router.
func SetupProgressionRoutes(r fiber.Router, engine *services.Engine) {
	r.Get("/me/profile", func(c *fiber.Ctx) error {
		p, err := engine.Profile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	r.Post("/me/login", func(c *fiber.Ctx) error {
		u, err := engine.RecordLogin(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"consecutive_login_days": u.ConsecutiveLoginDays,
			"last_login_at":          u.LastLoginAt,
		})
	})

	r.Get("/me/wallet", func(c *fiber.Ctx) error {
		w, err := engine.Wallet(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(w)
	})

	r.Get("/me/transactions", func(c *fiber.Ctx) error {
		txs, err := engine.RecentTransactions(c.UserContext(), middleware.UserID(c), queryLimit(c, 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"transactions": txs})
	})

	r.Get("/me/invite", func(c *fiber.Ctx) error {
		info, err := engine.InviteInfo(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(info)
	})

	r.Get("/missions", func(c *fiber.Ctx) error {
		missions, err := engine.ListMissions(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"missions": missions})
	})

	r.Get("/missions/:id", func(c *fiber.Ctx) error {
		st, err := engine.MissionStatusFor(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(st)
	})

	r.Post("/missions/:id/complete", func(c *fiber.Ctx) error {
		res, err := engine.CompleteMission(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Get("/me/daily-bonus", func(c *fiber.Ctx) error {
		st, err := engine.DailyBonusStatus(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(st)
	})

	r.Post("/me/daily-bonus/claim", func(c *fiber.Ctx) error {
		res, err := engine.ClaimDailyBonus(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Get("/leaderboard/:category", func(c *fiber.Ctx) error {
		entries, err := engine.Leaderboard(c.UserContext(), services.LeaderboardCategory(c.Params("category")), queryLimit(c, 10))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"category": c.Params("category"), "entries": entries})
	})
}
