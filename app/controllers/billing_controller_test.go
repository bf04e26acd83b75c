package controllers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/JulienFabre/TenderWatch/internal/pkg/billing"
)

func newWebhookTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	return app
}

func TestHandleStripeWebhookMissingSecret(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	app := newWebhookTestApp()

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "configuration_error", parsed["error"])
}

func TestHandleStripeWebhookMissingSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookTestApp()

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleStripeWebhookInvalidSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookTestApp()

	payload := `{"id":"evt_1","type":"invoice.payment_succeeded"}`
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", billing.SignStripePayload([]byte(payload), "whsec_other", time.Now()))

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "invalid_signature", parsed["error"])
}

func TestHandleStripeWebhookMalformedPayload(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookTestApp()

	payload := `{"id":"evt_1"}`
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", billing.SignStripePayload([]byte(payload), "whsec_test", time.Now()))

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "invalid_payload", parsed["error"])
}
