package repository

import (
	"time"

	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// ResetForPeriod upserts a zeroed counter for the new billing period. The
// unique (user_id, period_start) pair makes replayed provider events converge.
func (r *usageRepository) ResetForPeriod(userID uint, periodStart, periodEnd time.Time) error {
	counter := &models.UsageCounter{
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Used:        0,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end",
			"used",
			"updated_at",
		}),
	}).Create(counter).Error
}

// GetCurrent retrieves the counter covering the given instant
func (r *usageRepository) GetCurrent(userID uint, now time.Time) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := r.db.Where("user_id = ? AND period_start <= ? AND period_end > ?", userID, now, now).
		Order("period_start DESC").First(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// Increment adds delta to the counter covering the given instant
func (r *usageRepository) Increment(userID uint, now time.Time, delta int) error {
	return r.db.Model(&models.UsageCounter{}).
		Where("user_id = ? AND period_start <= ? AND period_end > ?", userID, now, now).
		Update("used", gorm.Expr("used + ?", delta)).Error
}
