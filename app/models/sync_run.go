package models

import "time"

const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusError   = "error"
)

// SyncRun is the write-once audit record of one synchronization execution.
type SyncRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"run_id"`
	Source     string    `gorm:"type:varchar(50);not null;default:'boamp';index" json:"source"`
	Found      int       `gorm:"not null;default:0" json:"found"`
	Inserted   int       `gorm:"not null;default:0" json:"inserted"`
	Updated    int       `gorm:"not null;default:0" json:"updated"`
	ErrorsJSON string    `gorm:"type:text" json:"errors_json"`
	Status     string    `gorm:"type:varchar(16);not null;index" json:"status"`
	DurationMS int64     `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for the SyncRun model
func (SyncRun) TableName() string {
	return "sync_runs"
}
