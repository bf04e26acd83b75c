package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/internal/pkg/billing"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/mail"
)

// HandleStripeWebhook receives payment provider events. Signature
// verification is mandatory before any parsing; processing errors for a
// recognized event are logged and swallowed with a success acknowledgement,
// relying on the provider's at-least-once retries and the handlers'
// idempotent upserts.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("stripe-signature"))

	secret, ok := env.MustGetEnv("STRIPE_WEBHOOK_SECRET")
	if !ok {
		return jsonError(c, fiber.StatusInternalServerError, "configuration_error", "STRIPE_WEBHOOK_SECRET is not configured")
	}
	if signature == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Missing stripe-signature header")
	}
	if !billing.VerifyStripeWebhookSignature(rawBody, signature, secret) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "")
	}

	event, err := billing.ParseEvent(rawBody)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	svc := billing.NewServiceFromDB()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, event.ID, event.Type, string(rawBody), true)
	if err != nil {
		log.Printf("billing webhook persist failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed", "")
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if !event.Recognized() {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	processErr := svc.ProcessEvent(ctx, event, string(rawBody))
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		// Acknowledge anyway; replays converge because all writes are
		// keyed upserts.
		log.Printf("billing webhook %s (%s) processing failed: %v", event.ID, event.Type, processErr)
		notifyBillingFailure(event, processErr)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "processed": false})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// notifyBillingFailure sends a best-effort alert mail; failures are logged
// only.
func notifyBillingFailure(event *billing.Event, processErr error) {
	alertTo := env.GetEnv("ALERT_EMAIL", "")
	if alertTo == "" || errors.Is(processErr, billing.ErrPlanNotFound) {
		return
	}
	body, err := mail.RenderBillingAlert(mail.BillingAlertView{
		EventID:   event.ID,
		EventType: event.Type,
		Error:     processErr.Error(),
	})
	if err != nil {
		log.Printf("billing alert render failed: %v", err)
		return
	}
	if err := mail.SendMail([]string{alertTo}, "Erreur de traitement billing", body); err != nil {
		log.Printf("billing alert send failed: %v", err)
	}
}
