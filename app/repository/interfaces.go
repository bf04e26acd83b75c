package repository

import (
	"time"

	"github.com/JulienFabre/TenderWatch/app/models"
	"gorm.io/gorm"
)

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	GetByExternalRef(ref string) (*models.Listing, error)
	Update(listing *models.Listing) error
	List(offset, limit int) ([]models.Listing, error)
	ListVisible(offset, limit int) ([]models.Listing, error)
	Count() (int64, error)
	CountVisible() (int64, error)
	Search(query, location string, offset, limit int) ([]models.Listing, error)
	CountSearch(query, location string) (int64, error)
	ArchiveExpired(before time.Time) (int64, error)
}

// SyncRunRepository defines the interface for sync-run log operations
type SyncRunRepository interface {
	Create(run *models.SyncRun) error
	GetByRunID(runID string) (*models.SyncRun, error)
	List(offset, limit int) ([]models.SyncRun, error)
	LastBySource(source string) (*models.SyncRun, error)
}

// PlanRepository defines the interface for plan lookups
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
	GetByCode(code string) (*models.Plan, error)
	GetByProviderPriceID(priceID string) (*models.Plan, error)
	ListActive() ([]models.Plan, error)
}

// SubscriptionRepository defines the interface for subscription reconciliation
type SubscriptionRepository interface {
	UpsertByUser(sub *models.Subscription) error
	GetByUserID(userID uint) (*models.Subscription, error)
	GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error)
	Update(sub *models.Subscription) error
}

// UsageRepository defines the interface for per-period usage counters
type UsageRepository interface {
	ResetForPeriod(userID uint, periodStart, periodEnd time.Time) error
	GetCurrent(userID uint, now time.Time) (*models.UsageCounter, error)
	Increment(userID uint, now time.Time, delta int) error
}

// SocialPostRepository defines the interface for the append-only post log
type SocialPostRepository interface {
	Create(post *models.SocialPost) error
	List(offset, limit int) ([]models.SocialPost, error)
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

// WebhookEventRepository defines the interface for webhook event deduplication
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Listing      ListingRepository
	SyncRun      SyncRunRepository
	Plan         PlanRepository
	Subscription SubscriptionRepository
	Usage        UsageRepository
	SocialPost   SocialPostRepository
	User         UserRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Listing:      NewListingRepository(db),
		SyncRun:      NewSyncRunRepository(db),
		Plan:         NewPlanRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Usage:        NewUsageRepository(db),
		SocialPost:   NewSocialPostRepository(db),
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
