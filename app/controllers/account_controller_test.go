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

	"github.com/JulienFabre/TenderWatch/app/models"
)

func newAccountTestApp(t *testing.T, users *fakeUserRepo, subs *fakeSubscriptionRepo, usage *fakeUsageRepo) *fiber.App {
	t.Helper()
	withAccountRepos(t, users, subs, usage)

	app := fiber.New()
	app.Post("/account/register", HandleRegisterAccount)
	app.Post("/account/login", HandleLogin)
	app.Get("/accounts/:id", HandleGetAccount)
	return app
}

func registerTestAccount(t *testing.T, users *fakeUserRepo, email, password string) *models.User {
	t.Helper()
	user, err := models.CreateUser("Julien Fabre", email, password)
	assert.NoError(t, err)
	assert.NoError(t, users.Create(user))
	return user
}

func TestHandleRegisterAccount(t *testing.T) {
	users := newFakeUserRepo()
	app := newAccountTestApp(t, users, newFakeSubscriptionRepo(), newFakeUsageRepo())

	payload := `{"name":"Julien Fabre","email":"julien@example.fr","password":"s3cret-pass"}`
	req := httptest.NewRequest("POST", "/account/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	stored, err := users.GetByEmail("julien@example.fr")
	assert.NoError(t, err)
	assert.Equal(t, models.STATUS_ACTIVE, stored.Status)
	assert.True(t, models.CheckPasswordHash("s3cret-pass", stored.Password))

	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "s3cret-pass")
	assert.NotContains(t, string(body), stored.Password)
}

func TestHandleRegisterAccountDuplicateEmail(t *testing.T) {
	users := newFakeUserRepo()
	registerTestAccount(t, users, "julien@example.fr", "s3cret-pass")
	app := newAccountTestApp(t, users, newFakeSubscriptionRepo(), newFakeUsageRepo())

	payload := `{"name":"Julien Fabre","email":"julien@example.fr","password":"autre-pass"}`
	req := httptest.NewRequest("POST", "/account/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "validation_failed", parsed["error"])
}

func TestHandleRegisterAccountValidation(t *testing.T) {
	app := newAccountTestApp(t, newFakeUserRepo(), newFakeSubscriptionRepo(), newFakeUsageRepo())

	cases := []struct {
		name    string
		payload string
		status  int
	}{
		{"malformed body", `{"name":`, fiber.StatusBadRequest},
		{"short password", `{"name":"Julien Fabre","email":"julien@example.fr","password":"abc"}`, fiber.StatusUnprocessableEntity},
		{"missing email", `{"name":"Julien Fabre","password":"s3cret-pass"}`, fiber.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/account/register", strings.NewReader(tc.payload))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandleLogin(t *testing.T) {
	users := newFakeUserRepo()
	registerTestAccount(t, users, "julien@example.fr", "s3cret-pass")
	app := newAccountTestApp(t, users, newFakeSubscriptionRepo(), newFakeUsageRepo())

	payload := `{"email":"julien@example.fr","password":"s3cret-pass"}`
	req := httptest.NewRequest("POST", "/account/login", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, _ := users.GetByEmail("julien@example.fr")
	assert.NotNil(t, stored.LastLoginAt)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	users := newFakeUserRepo()
	registerTestAccount(t, users, "julien@example.fr", "s3cret-pass")
	app := newAccountTestApp(t, users, newFakeSubscriptionRepo(), newFakeUsageRepo())

	cases := []struct {
		name    string
		payload string
	}{
		{"wrong password", `{"email":"julien@example.fr","password":"wrong-pass"}`},
		{"unknown email", `{"email":"autre@example.fr","password":"s3cret-pass"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/account/login", strings.NewReader(tc.payload))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var parsed map[string]interface{}
			assert.NoError(t, json.Unmarshal(body, &parsed))
			assert.Equal(t, "invalid_credentials", parsed["error"], "wrong email and wrong password must answer identically")
		})
	}
}

func TestHandleLoginDisabledAccount(t *testing.T) {
	users := newFakeUserRepo()
	user := registerTestAccount(t, users, "julien@example.fr", "s3cret-pass")
	user.Status = models.STATUS_DISABLED
	assert.NoError(t, users.Update(user))
	app := newAccountTestApp(t, users, newFakeSubscriptionRepo(), newFakeUsageRepo())

	payload := `{"email":"julien@example.fr","password":"s3cret-pass"}`
	req := httptest.NewRequest("POST", "/account/login", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestHandleGetAccount(t *testing.T) {
	users := newFakeUserRepo()
	user := registerTestAccount(t, users, "julien@example.fr", "s3cret-pass")

	subs := newFakeSubscriptionRepo()
	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	assert.NoError(t, subs.UpsertByUser(&models.Subscription{
		UserID:                 user.ID,
		ProviderSubscriptionID: "sub_123",
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodEnd:       &periodEnd,
	}))

	app := newAccountTestApp(t, users, subs, newFakeUsageRepo())

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts/1", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, true, parsed["entitled"])
}

func TestHandleGetAccountUnknown(t *testing.T) {
	app := newAccountTestApp(t, newFakeUserRepo(), newFakeSubscriptionRepo(), newFakeUsageRepo())

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts/42", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
