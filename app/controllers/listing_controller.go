package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/metrics/counter"
)

const visibleCountCacheKey = "listings:visible_count"

// listingRepo resolves the listing repository; swappable in tests.
var listingRepo = func() repository.ListingRepository {
	return repository.GetGlobalFactory().GetListingRepository()
}

// HandleListListings serves the public search/browse endpoint. Only visible
// listings are returned; `q` matches title, client name and description.
// total_count follows the active filter.
func HandleListListings(c *fiber.Ctx) error {
	repo := listingRepo()
	offset, limit := paginationParams(c)

	query := c.Query("q")
	location := c.Query("location")
	filtered := query != "" || location != ""

	var listings []models.Listing
	var err error
	if filtered {
		listings, err = repo.Search(query, location, offset, limit)
	} else {
		listings, err = repo.ListVisible(offset, limit)
	}
	if err != nil {
		log.Printf("listing list failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing query failed")
	}

	var total int64
	if filtered {
		total, err = repo.CountSearch(query, location)
	} else {
		total, err = visibleCount(repo)
	}
	if err != nil {
		log.Printf("listing count failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing count failed")
	}

	return c.JSON(fiber.Map{
		"total_count": total,
		"results":     listings,
	})
}

// visibleCount serves the unfiltered total from a short-lived cache entry to
// keep the COUNT off the hot browse path.
func visibleCount(repo repository.ListingRepository) (int64, error) {
	if cached, err := cache.GetInt(visibleCountCacheKey); err == nil {
		return int64(cached), nil
	}
	total, err := repo.CountVisible()
	if err != nil {
		return 0, err
	}
	if err := cache.Set(visibleCountCacheKey, total, time.Minute); err != nil {
		log.Printf("visible count cache write failed: %v", err)
	}
	return total, nil
}

// HandleGetListing serves one listing by its external reference.
func HandleGetListing(c *fiber.Ctx) error {
	ref := c.Params("ref")
	if ref == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "ref missing")
	}

	repo := listingRepo()
	listing, err := repo.GetByExternalRef(ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No listing with this reference")
		}
		log.Printf("listing lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing lookup failed")
	}
	if !listing.Visible {
		return jsonError(c, fiber.StatusNotFound, "not_found", "No listing with this reference")
	}

	// View counting is buffered in Redis and flushed periodically.
	if err := counter.AddListingView(listing.ID); err != nil {
		log.Printf("listing view count failed: %v", err)
	}

	return c.JSON(listing)
}

// createListingRequest is the body for manually entered tenders.
type createListingRequest struct {
	ExternalRef   string     `json:"external_ref" validate:"required,max=100"`
	Title         string     `json:"title" validate:"required,max=500"`
	ClientName    string     `json:"client_name" validate:"max=300"`
	Description   string     `json:"description"`
	Deadline      *time.Time `json:"deadline"`
	Amount        *float64   `json:"amount"`
	Location      string     `json:"location" validate:"max=200"`
	ProcedureType string     `json:"procedure_type" validate:"max=100"`
	CategoryCode  string     `json:"category_code" validate:"max=50"`
	SourceURL     string     `json:"source_url" validate:"omitempty,url,max=500"`
}

// HandleCreateListing creates a manually entered listing.
func HandleCreateListing(c *fiber.Ctx) error {
	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}

	now := time.Now()
	listing := &models.Listing{
		ExternalRef:   req.ExternalRef,
		Title:         req.Title,
		ClientName:    req.ClientName,
		Description:   req.Description,
		Deadline:      req.Deadline,
		Amount:        req.Amount,
		Location:      req.Location,
		PublishedAt:   &now,
		ProcedureType: req.ProcedureType,
		CategoryCode:  req.CategoryCode,
		SourceURL:     req.SourceURL,
		Visible:       true,
	}
	if err := listing.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	repo := listingRepo()
	if err := repo.Create(listing); err != nil {
		// A concurrent insert on the same ref loses the unique-index race;
		// that is a caller mistake, not a server fault.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "A listing with this reference already exists")
		}
		log.Printf("listing create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing create failed")
	}

	if err := cache.Delete(visibleCountCacheKey); err != nil {
		log.Printf("visible count cache invalidation failed: %v", err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// HandleArchiveListings hides listings whose deadline passed. Exposed only to
// operators via the service token; the sync routine never archives.
func HandleArchiveListings(c *fiber.Ctx) error {
	repo := listingRepo()
	archived, err := repo.ArchiveExpired(time.Now())
	if err != nil {
		log.Printf("listing archive failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Archive failed")
	}

	if err := cache.Delete(visibleCountCacheKey); err != nil {
		log.Printf("visible count cache invalidation failed: %v", err)
	}
	return c.JSON(fiber.Map{"archived": archived})
}
