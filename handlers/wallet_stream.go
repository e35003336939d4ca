// handlers/wallet_stream.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

const streamPollInterval = 2 * time.Second

// SetupStreamRoutes registers the server-sent event stream of star
// transactions. It authenticates from the query string, so it is mounted
// ahead of the header-based auth.
func SetupStreamRoutes(app *fiber.App, engine *services.Engine, jwtSecret string, log *slog.Logger) {
	app.Get("/stream/wallet", middleware.SSEAuthMiddleware(jwtSecret, log), func(c *fiber.Ctx) error {
		return streamWallet(c, engine, log)
	})
}

func streamWallet(c *fiber.Ctx, engine *services.Engine, log *slog.Logger) error {
	userID := middleware.UserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		// only entries written after the stream opens are sent
		cursor, err := engine.LedgerHead(ctx, userID)
		if err != nil {
			log.Error("wallet stream init failed", "user_id", userID, "error", err)
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for range ticker.C {
			entries, err := engine.TransactionsSince(ctx, userID, cursor)
			if err != nil {
				log.Error("wallet stream query failed", "user_id", userID, "error", err)
				continue
			}
			if len(entries) == 0 {
				// keepalive; a failed flush means the client went away
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
				continue
			}

			cursor.Advance(entries)
			for _, entry := range entries {
				payload, _ := json.Marshal(entry)
				fmt.Fprintf(w, "event: star_transaction\ndata: %s\n\n", payload)
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})

	return nil
}
