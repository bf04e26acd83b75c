package models

import "time"

const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Plan maps a provider price to an internal plan with its monthly quota.
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name            string    `gorm:"type:varchar(100);not null" json:"name"`
	ProviderPriceID string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"provider_price_id"`
	MonthlyQuota    int       `gorm:"not null;default:0" json:"monthly_quota"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Plan model
func (Plan) TableName() string {
	return "plans"
}
