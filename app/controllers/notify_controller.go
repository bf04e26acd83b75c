package controllers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/mail"
)

// sendEmailRequest is the body for the ad hoc notification endpoint.
type sendEmailRequest struct {
	To      []string `json:"to" validate:"required,min=1,dive,email"`
	Subject string   `json:"subject" validate:"required,max=300"`
	HTML    string   `json:"html" validate:"required"`
}

// HandleSendEmail performs one transactional email send on behalf of a
// trusted caller.
func HandleSendEmail(c *fiber.Ctx) error {
	if env.GetEnv("MAIL_API_KEY", "") == "" && env.GetEnv("SMTP_HOST", "") == "" {
		return jsonError(c, fiber.StatusInternalServerError, "configuration_error", "No mail transport configured")
	}

	var req sendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := mail.SendMail(req.To, req.Subject, req.HTML); err != nil {
		log.Printf("notify email send failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "send_failed", err.Error())
	}
	return c.JSON(fiber.Map{"ok": true})
}
