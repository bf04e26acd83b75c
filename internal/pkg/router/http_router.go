package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/app/controllers"
	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/syncer"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		body := fiber.Map{"status": "ok"}
		if lastSync, err := cache.Get(syncer.LastStatusCacheKey); err == nil {
			body["last_sync"] = lastSync
		}
		return c.Status(fiber.StatusOK).JSON(body)
	})

	// Provider callbacks live outside the /api group: no CORS, no limiter,
	// signature verification is the only gate.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
