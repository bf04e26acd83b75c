package repository

import (
	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
)

// syncRunRepository implements the SyncRunRepository interface
type syncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new sync run repository instance
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

// Create persists a run log record; records are write-once
func (r *syncRunRepository) Create(run *models.SyncRun) error {
	return r.db.Create(run).Error
}

// GetByRunID retrieves a run log by its UUID
func (r *syncRunRepository) GetByRunID(runID string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List retrieves run logs with pagination, newest first
func (r *syncRunRepository) List(offset, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error
	return runs, err
}

// LastBySource retrieves the most recent run log for a feed source
func (r *syncRunRepository) LastBySource(source string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.Where("source = ?", source).Order("created_at DESC").First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
