package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/social"
)

// newPublishService builds the fan-out service; swappable in tests.
var newPublishService = social.NewServiceFromDB

// publishPostRequest is the body for a multi-platform publish.
type publishPostRequest struct {
	Text       string   `json:"text" validate:"required,max=3000"`
	MediaUrls  []string `json:"media_urls" validate:"dive,url"`
	Platforms  []string `json:"platforms" validate:"required,min=1,dive,oneof=linkedin facebook"`
	TargetType string   `json:"target_type" validate:"omitempty,max=50"`
	PageID     string   `json:"page_id" validate:"omitempty,max=100"`
}

// HandlePublishPost fans a post out to the requested platforms. Overall
// status is 200 when all platforms succeeded, 207 when some failed, 500 when
// all failed; per-platform provider errors are included verbatim.
func HandlePublishPost(c *fiber.Ctx) error {
	if _, ok := env.MustGetEnv("SOCIAL_API_KEY"); !ok {
		return jsonError(c, fiber.StatusInternalServerError, "configuration_error", "SOCIAL_API_KEY is not configured")
	}

	var req publishPostRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	target := social.PostTarget{
		TargetType: req.TargetType,
		PageID:     req.PageID,
	}
	if target.TargetType == "" {
		target.TargetType = "page"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc := newPublishService()
	result := svc.PublishToAll(ctx, req.Text, req.MediaUrls, req.Platforms, target)

	status := fiber.StatusOK
	switch {
	case result.AllSucceeded():
		status = fiber.StatusOK
	case result.AnySucceeded():
		status = fiber.StatusMultiStatus
	default:
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"post_id": result.PostID,
		"results": result.Results,
	})
}
