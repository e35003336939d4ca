package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindPreconditionFailed:
		return fiber.StatusConflict
	case services.KindInsufficientBalance:
		return fiber.StatusPaymentRequired
	case services.KindConflict:
		return fiber.StatusServiceUnavailable
	case services.KindInvalidArgument:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError maps engine errors to HTTP; anything else is a 500.
func respondError(c *fiber.Ctx, err error) error {
	var ee *services.EngineError
	if errors.As(err, &ee) {
		body := fiber.Map{
			"error": ee.Reason,
			"kind":  ee.Kind,
		}
		if len(ee.Detail) > 0 {
			body["detail"] = ee.Detail
		}
		if ee.Err != nil {
			requestLogger(c).Warn("request failed", "method", c.Method(), "path", c.Path(), "kind", ee.Kind, "error", ee.Err)
		}
		return c.Status(statusFor(ee.Kind)).JSON(body)
	}
	requestLogger(c).Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// withLogger makes log available to respondError for the rest of the request.
func withLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("logger", log)
		return c.Next()
	}
}

func requestLogger(c *fiber.Ctx) *slog.Logger {
	if log, ok := c.Locals("logger").(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func queryLimit(c *fiber.Ctx, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
