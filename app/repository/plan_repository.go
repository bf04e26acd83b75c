package repository

import (
	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByCode retrieves a plan by its internal code
func (r *planRepository) GetByCode(code string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("code = ?", code).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByProviderPriceID resolves a provider price reference to a local plan
func (r *planRepository) GetByProviderPriceID(priceID string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("provider_price_id = ? AND is_active = ?", priceID, true).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive retrieves all active plans
func (r *planRepository) ListActive() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Where("is_active = ?", true).Order("monthly_quota ASC").Find(&plans).Error
	return plans, err
}
