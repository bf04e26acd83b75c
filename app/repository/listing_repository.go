package repository

import (
	"time"

	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create creates a new listing in the database
func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// GetByID retrieves a listing by its ID
func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByExternalRef retrieves a listing by its external reference (upsert key)
func (r *listingRepository) GetByExternalRef(ref string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("external_ref = ?", ref).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Update saves all fields of an existing listing (full replace by row id)
func (r *listingRepository) Update(listing *models.Listing) error {
	return r.db.Save(listing).Error
}

// List retrieves listings with pagination, newest publications first
func (r *listingRepository) List(offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Order("published_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

// ListVisible retrieves publicly visible listings with pagination
func (r *listingRepository) ListVisible(offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("visible = ?", true).
		Order("published_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

// Count returns the total number of listings
func (r *listingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Count(&count).Error
	return count, err
}

// CountVisible returns the number of publicly visible listings
func (r *listingRepository) CountVisible() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("visible = ?", true).Count(&count).Error
	return count, err
}

// Search retrieves visible listings matching a text query and optional location
func (r *listingRepository) Search(query, location string, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.searchScope(query, location).
		Order("published_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

// CountSearch counts visible listings under the same predicate Search uses
func (r *listingRepository) CountSearch(query, location string) (int64, error) {
	var count int64
	err := r.searchScope(query, location).Model(&models.Listing{}).Count(&count).Error
	return count, err
}

func (r *listingRepository) searchScope(query, location string) *gorm.DB {
	tx := r.db.Where("visible = ?", true)
	if query != "" {
		searchTerm := "%" + query + "%"
		tx = tx.Where("title LIKE ? OR client_name LIKE ? OR description LIKE ?", searchTerm, searchTerm, searchTerm)
	}
	if location != "" {
		tx = tx.Where("location = ?", location)
	}
	return tx
}

// ArchiveExpired hides listings whose deadline passed before the given time.
// Not called by the sync routine; listings stay publicly visible unless an
// operator explicitly archives them.
func (r *listingRepository) ArchiveExpired(before time.Time) (int64, error) {
	tx := r.db.Model(&models.Listing{}).
		Where("visible = ? AND deadline IS NOT NULL AND deadline < ?", true, before).
		Update("visible", false)
	return tx.RowsAffected, tx.Error
}
