package repository

import (
	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
)

// socialPostRepository implements the SocialPostRepository interface
type socialPostRepository struct {
	db *gorm.DB
}

// NewSocialPostRepository creates a new social post repository instance
func NewSocialPostRepository(db *gorm.DB) SocialPostRepository {
	return &socialPostRepository{db: db}
}

// Create appends a publish attempt to the post log
func (r *socialPostRepository) Create(post *models.SocialPost) error {
	return r.db.Create(post).Error
}

// List retrieves post log entries with pagination, newest first
func (r *socialPostRepository) List(offset, limit int) ([]models.SocialPost, error) {
	var posts []models.SocialPost
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}
