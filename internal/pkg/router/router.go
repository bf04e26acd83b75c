package router

import (
	"github.com/gofiber/fiber/v2"
)

// InstallRouter attaches all route groups to the app.
func InstallRouter(app *fiber.App) {
	NewHttpRouter().InstallRouter(app)
	NewApiRouter().InstallRouter(app)
}
