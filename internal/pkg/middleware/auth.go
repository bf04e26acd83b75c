package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
)

// RequireBearerToken authenticates requests against the token stored in the
// given environment variable. A missing server-side token is a configuration
// error, not an auth failure.
func RequireBearerToken(envKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected, ok := env.MustGetEnv(envKey)
		if !ok {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "configuration_error",
				"details": envKey + " is not configured",
			})
		}

		token := ExtractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "details": "Missing bearer token"})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "details": "Invalid bearer token"})
		}
		return c.Next()
	}
}

// RequireServiceToken guards trusted server-to-server endpoints.
func RequireServiceToken() fiber.Handler {
	return RequireBearerToken("SERVICE_TOKEN")
}

// RequireAPIToken guards caller-facing authenticated endpoints.
func RequireAPIToken() fiber.Handler {
	return RequireBearerToken("API_TOKEN")
}

// ExtractBearerToken returns the token from an `Authorization: Bearer <t>`
// header, or an empty string.
func ExtractBearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
