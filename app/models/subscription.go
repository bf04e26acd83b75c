package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
)

// Subscription mirrors the provider-side subscription state for one user.
// Creation is keyed by user (at most one row per user), later webhook updates
// match on ProviderSubscriptionID. Rows are closed with a terminal status on
// cancellation, never deleted.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	PlanID                 uint       `gorm:"not null;index" json:"plan_id"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"-"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Subscription model
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsEntitling reports whether the subscription currently grants plan access.
func (s *Subscription) IsEntitling() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
