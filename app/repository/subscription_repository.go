package repository

import (
	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// UpsertByUser creates or replaces the single subscription row for a user.
// The unique index on user_id is the conflict target, so replayed checkout
// events converge on the same row.
func (r *subscriptionRepository) UpsertByUser(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"provider_customer_id",
			"provider_subscription_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

// GetByUserID retrieves the subscription row owned by a user
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByProviderSubscriptionID retrieves a subscription by the provider's id
func (r *subscriptionRepository) GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_subscription_id = ?", providerSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Update saves all fields of an existing subscription
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}
