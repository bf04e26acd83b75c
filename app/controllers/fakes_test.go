package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/boamp"
	"github.com/JulienFabre/TenderWatch/internal/pkg/social"
)

// In-memory fakes backing the handler tests, swapped in through the
// package-level accessor variables.

type fakeListingRepo struct {
	byRef    map[string]*models.Listing
	nextID   uint
	failRefs map[string]bool
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{byRef: make(map[string]*models.Listing), failRefs: make(map[string]bool), nextID: 1}
}

func (r *fakeListingRepo) seed(listing models.Listing) {
	if listing.ID == 0 {
		listing.ID = r.nextID
		r.nextID++
	}
	r.byRef[listing.ExternalRef] = &listing
}

func (r *fakeListingRepo) Create(listing *models.Listing) error {
	if r.failRefs[listing.ExternalRef] {
		return errors.New("store write failed")
	}
	if _, ok := r.byRef[listing.ExternalRef]; ok {
		return gorm.ErrDuplicatedKey
	}
	listing.ID = r.nextID
	r.nextID++
	copied := *listing
	r.byRef[listing.ExternalRef] = &copied
	return nil
}

func (r *fakeListingRepo) GetByID(id uint) (*models.Listing, error) {
	for _, listing := range r.byRef {
		if listing.ID == id {
			copied := *listing
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeListingRepo) GetByExternalRef(ref string) (*models.Listing, error) {
	listing, ok := r.byRef[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *listing
	return &copied, nil
}

func (r *fakeListingRepo) Update(listing *models.Listing) error {
	if r.failRefs[listing.ExternalRef] {
		return errors.New("store write failed")
	}
	copied := *listing
	r.byRef[listing.ExternalRef] = &copied
	return nil
}

func (r *fakeListingRepo) List(offset, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, listing := range r.byRef {
		out = append(out, *listing)
	}
	return out, nil
}

func (r *fakeListingRepo) ListVisible(offset, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, listing := range r.byRef {
		if listing.Visible {
			out = append(out, *listing)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) Count() (int64, error) {
	return int64(len(r.byRef)), nil
}

func (r *fakeListingRepo) CountVisible() (int64, error) {
	var count int64
	for _, listing := range r.byRef {
		if listing.Visible {
			count++
		}
	}
	return count, nil
}

func (r *fakeListingRepo) matches(listing *models.Listing, query, location string) bool {
	if !listing.Visible {
		return false
	}
	if query != "" &&
		!strings.Contains(listing.Title, query) &&
		!strings.Contains(listing.ClientName, query) &&
		!strings.Contains(listing.Description, query) {
		return false
	}
	if location != "" && listing.Location != location {
		return false
	}
	return true
}

func (r *fakeListingRepo) Search(query, location string, offset, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, listing := range r.byRef {
		if r.matches(listing, query, location) {
			out = append(out, *listing)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) CountSearch(query, location string) (int64, error) {
	var count int64
	for _, listing := range r.byRef {
		if r.matches(listing, query, location) {
			count++
		}
	}
	return count, nil
}

func (r *fakeListingRepo) ArchiveExpired(before time.Time) (int64, error) {
	var archived int64
	for _, listing := range r.byRef {
		if listing.Visible && listing.Deadline != nil && listing.Deadline.Before(before) {
			listing.Visible = false
			archived++
		}
	}
	return archived, nil
}

type fakeUserRepo struct {
	byEmail map[string]*models.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return gorm.ErrDuplicatedKey
	}
	user.ID = r.nextID
	r.nextID++
	copied := *user
	r.byEmail[user.Email] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	for _, user := range r.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) Update(user *models.User) error {
	copied := *user
	r.byEmail[user.Email] = &copied
	return nil
}

type fakeSubscriptionRepo struct {
	byUserID map[uint]*models.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{byUserID: make(map[uint]*models.Subscription)}
}

func (r *fakeSubscriptionRepo) UpsertByUser(sub *models.Subscription) error {
	copied := *sub
	r.byUserID[sub.UserID] = &copied
	return nil
}

func (r *fakeSubscriptionRepo) GetByUserID(userID uint) (*models.Subscription, error) {
	sub, ok := r.byUserID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubscriptionRepo) GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error) {
	for _, sub := range r.byUserID {
		if sub.ProviderSubscriptionID == providerSubID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubscriptionRepo) Update(sub *models.Subscription) error {
	copied := *sub
	r.byUserID[sub.UserID] = &copied
	return nil
}

type fakeUsageRepo struct {
	counters map[uint]*models.UsageCounter
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counters: make(map[uint]*models.UsageCounter)}
}

func (r *fakeUsageRepo) ResetForPeriod(userID uint, periodStart, periodEnd time.Time) error {
	r.counters[userID] = &models.UsageCounter{UserID: userID, PeriodStart: periodStart, PeriodEnd: periodEnd}
	return nil
}

func (r *fakeUsageRepo) GetCurrent(userID uint, now time.Time) (*models.UsageCounter, error) {
	counter, ok := r.counters[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *counter
	return &copied, nil
}

func (r *fakeUsageRepo) Increment(userID uint, now time.Time, delta int) error {
	counter, ok := r.counters[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	counter.Used += delta
	return nil
}

type fakeSyncRunRepo struct {
	runs []models.SyncRun
}

func (r *fakeSyncRunRepo) Create(run *models.SyncRun) error {
	r.runs = append(r.runs, *run)
	return nil
}

func (r *fakeSyncRunRepo) GetByRunID(runID string) (*models.SyncRun, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSyncRunRepo) List(offset, limit int) ([]models.SyncRun, error) {
	return r.runs, nil
}

func (r *fakeSyncRunRepo) LastBySource(source string) (*models.SyncRun, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeFeedClient struct {
	response *boamp.FeedResponse
	err      error
}

func (f *fakeFeedClient) FetchRecent(ctx context.Context, departement string, deadlineAfter time.Time, limit int) (*boamp.FeedResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakePublisher struct {
	failPlatforms map[string]bool
}

func (p *fakePublisher) Publish(ctx context.Context, platform, text string, mediaUrls []string, target social.PostTarget) (json.RawMessage, error) {
	if p.failPlatforms[platform] {
		return nil, errors.New("provider returned 502")
	}
	return json.RawMessage(`{"id":"post-` + platform + `"}`), nil
}

type fakeSocialPostRepo struct {
	posts []models.SocialPost
}

func (r *fakeSocialPostRepo) Create(post *models.SocialPost) error {
	r.posts = append(r.posts, *post)
	return nil
}

func (r *fakeSocialPostRepo) List(offset, limit int) ([]models.SocialPost, error) {
	return r.posts, nil
}

// Seam helpers restoring the production accessors after each test.

func withListingRepo(t *testing.T, repo repository.ListingRepository) {
	orig := listingRepo
	listingRepo = func() repository.ListingRepository { return repo }
	t.Cleanup(func() { listingRepo = orig })
}

func withAccountRepos(t *testing.T, users repository.UserRepository, subs repository.SubscriptionRepository, usage repository.UsageRepository) {
	origUsers, origSubs, origUsage := accountUsers, accountSubscriptions, accountUsage
	accountUsers = func() repository.UserRepository { return users }
	accountSubscriptions = func() repository.SubscriptionRepository { return subs }
	accountUsage = func() repository.UsageRepository { return usage }
	t.Cleanup(func() {
		accountUsers, accountSubscriptions, accountUsage = origUsers, origSubs, origUsage
	})
}
