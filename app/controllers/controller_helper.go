package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// jsonError writes the uniform `{error, details?}` body.
func jsonError(c *fiber.Ctx, status int, code string, details string) error {
	body := fiber.Map{"error": code}
	if details != "" {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

// paginationParams reads page/page_size query parameters with sane bounds.
func paginationParams(c *fiber.Ctx) (offset, limit int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return (page - 1) * limit, limit
}
