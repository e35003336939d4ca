// handlers/dao_routes.go
package handlers

import (
	"gamification-engine/middleware"
	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	Choice models.VoteChoice `json:"choice"`
}

// SetupDAORoutes registers proposal listing and voting.
func SetupDAORoutes(r fiber.Router, engine *services.Engine) {
	r.Get("/dao/proposals", func(c *fiber.Ctx) error {
		proposals, err := engine.Catalog.Proposals(c.UserContext(), models.ProposalStatus(c.Query("status")))
		if err != nil {
			return respondError(c, err)
		}
		power, err := engine.VotePower(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"proposals": proposals, "vote_power": power})
	})

	r.Get("/dao/proposals/:id", func(c *fiber.Ctx) error {
		p, err := engine.Catalog.Proposal(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		mine, err := engine.UserVote(c.UserContext(), middleware.UserID(c), p.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"proposal": p, "my_vote": mine})
	})

	r.Post("/dao/proposals/:id/vote", func(c *fiber.Ctx) error {
		var req voteRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := engine.Vote(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Choice)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
