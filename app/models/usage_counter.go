package models

import "time"

// UsageCounter tracks consumed quota for one user within one billing period.
// A billing-period rollover resets usage by upserting a zeroed row keyed by
// (user_id, period_start).
type UsageCounter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:ux_usage_counters_user_period,unique,priority:1" json:"user_id"`
	PeriodStart time.Time `gorm:"type:timestamp;not null;index:ux_usage_counters_user_period,unique,priority:2" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:timestamp;not null" json:"period_end"`
	Used        int       `gorm:"not null;default:0" json:"used"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the UsageCounter model
func (UsageCounter) TableName() string {
	return "usage_counters"
}
