package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
)

// Repository accessors, swappable in tests.
var (
	accountUsers = func() repository.UserRepository {
		return repository.GetGlobalFactory().GetUserRepository()
	}
	accountSubscriptions = func() repository.SubscriptionRepository {
		return repository.GetGlobalFactory().GetSubscriptionRepository()
	}
	accountUsage = func() repository.UsageRepository {
		return repository.GetGlobalFactory().GetUsageRepository()
	}
)

// registerAccountRequest is the body for account creation.
type registerAccountRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// HandleRegisterAccount creates an account. The returned id is what checkout
// sessions carry as client_reference_id, tying provider webhooks back to the
// account.
func HandleRegisterAccount(c *fiber.Ctx) error {
	var req registerAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := accountUsers().Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "An account with this email already exists")
		}
		log.Printf("account create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account create failed")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// loginRequest is the body for credential verification.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies account credentials on behalf of a trusted caller and
// stamps the last login time. Wrong email and wrong password answer
// identically.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	users := accountUsers()
	user, err := users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "")
		}
		log.Printf("account lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}
	if !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "")
	}
	if user.Status != models.STATUS_ACTIVE {
		return jsonError(c, fiber.StatusForbidden, "account_disabled", "")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := users.Update(user); err != nil {
		log.Printf("last login update failed: %v", err)
	}

	return c.JSON(fiber.Map{"ok": true, "user_id": user.ID})
}

// HandleGetAccount serves one account with its subscription entitlement and
// current-period usage.
func HandleGetAccount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}

	user, err := accountUsers().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No account with this id")
		}
		log.Printf("account lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}

	response := fiber.Map{
		"user":     user,
		"entitled": false,
	}

	sub, err := accountSubscriptions().GetByUserID(user.ID)
	if err == nil {
		response["entitled"] = sub.IsEntitling()
		response["subscription"] = sub
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("subscription lookup failed: %v", err)
	}

	if usage, err := accountUsage().GetCurrent(user.ID, time.Now()); err == nil {
		response["usage"] = usage
	}

	return c.JSON(response)
}
