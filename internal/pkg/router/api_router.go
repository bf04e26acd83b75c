package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/JulienFabre/TenderWatch/app/controllers"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api",
		cors.New(cors.Config{
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}),
		limiter.New(limiter.Config{
			Storage: newLimiterStorage(),
		}),
	)

	v1 := api.Group("/v1")

	// Public search/browse
	v1.Get("/listings", controllers.HandleListListings)
	v1.Get("/listings/:ref", controllers.HandleGetListing)

	// Authenticated caller endpoints
	authed := v1.Group("", middleware.RequireAPIToken())
	authed.Post("/listings", controllers.HandleCreateListing)
	authed.Post("/account/register", controllers.HandleRegisterAccount)
	authed.Post("/account/login", controllers.HandleLogin)
	authed.Post("/social/post", controllers.HandlePublishPost)
	authed.Post("/notify/email", controllers.HandleSendEmail)
	authed.Post("/webhooks/validate", controllers.HandleValidateWebhook)

	// Trusted server-to-server endpoints
	service := v1.Group("", middleware.RequireServiceToken())
	service.Post("/sync/run", controllers.HandleRunSync)
	service.Get("/sync/runs", controllers.HandleListSyncRuns)
	service.Post("/listings/archive", controllers.HandleArchiveListings)
	service.Get("/accounts/:id", controllers.HandleGetAccount)
}

// newLimiterStorage backs the API rate limiter with Redis so limits hold
// across instances.
func newLimiterStorage() *redisstorage.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
