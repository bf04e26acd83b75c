package controllers

import (
	"log"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/webhookguard"
)

const webhookRegistrationsPerMinute = 10

var (
	guardOnce    sync.Once
	urlValidator *webhookguard.Validator
	rateLimiter  *webhookguard.RateLimiter
)

// guard lazily builds the process-wide validator and rate limiter. The
// counter store is Redis-backed so limits survive restarts.
func guard() (*webhookguard.Validator, *webhookguard.RateLimiter) {
	guardOnce.Do(func() {
		var extra []string
		if domains := env.GetEnv("WEBHOOK_EXTRA_DOMAINS", ""); domains != "" {
			extra = strings.Split(domains, ",")
		}
		urlValidator = webhookguard.NewValidator(extra...)
		rateLimiter = webhookguard.NewRateLimiter(
			webhookguard.NewRedisCounterStore(cache.GetClient()),
			webhookRegistrationsPerMinute,
		)
	})
	return urlValidator, rateLimiter
}

// validateWebhookRequest is the body for webhook target validation.
type validateWebhookRequest struct {
	URL     string                 `json:"url" validate:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// HandleValidateWebhook checks a webhook target URL before registration,
// returns a sanitized copy of the sample payload and issues the token that
// authenticates later inbound calls from the registered webhook.
func HandleValidateWebhook(c *fiber.Ctx) error {
	validatorSvc, limiter := guard()

	allowed, resetAt, err := limiter.Allow(c.Context(), c.IP())
	if err != nil {
		log.Printf("webhook rate limit check failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Rate limit check failed")
	}
	if !allowed {
		c.Set("Retry-After", resetAt.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
		return jsonError(c, fiber.StatusTooManyRequests, "rate_limited", "Too many validation requests")
	}

	var req validateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	ok, reason := validatorSvc.ValidateURL(req.URL)
	if !ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"valid":  false,
			"reason": reason,
		})
	}

	token, err := webhookguard.GenerateToken()
	if err != nil {
		log.Printf("webhook token generation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Token generation failed")
	}

	response := fiber.Map{
		"valid": true,
		"token": token,
	}
	if req.Payload != nil {
		response["sanitized_payload"] = webhookguard.SanitizePayload(req.Payload)
	}
	return c.JSON(response)
}
