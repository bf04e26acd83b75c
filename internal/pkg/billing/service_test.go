package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
)

type fakePlanStore struct {
	byPriceID map[string]*models.Plan
}

func (s *fakePlanStore) GetByID(id uint) (*models.Plan, error)       { return nil, gorm.ErrRecordNotFound }
func (s *fakePlanStore) GetByCode(code string) (*models.Plan, error) { return nil, gorm.ErrRecordNotFound }
func (s *fakePlanStore) ListActive() ([]models.Plan, error)          { return nil, nil }

func (s *fakePlanStore) GetByProviderPriceID(priceID string) (*models.Plan, error) {
	plan, ok := s.byPriceID[priceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return plan, nil
}

type fakeSubscriptionStore struct {
	byUserID map[uint]*models.Subscription
	nextID   uint
	upserts  int
	updates  int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{byUserID: make(map[uint]*models.Subscription), nextID: 1}
}

func (s *fakeSubscriptionStore) UpsertByUser(sub *models.Subscription) error {
	s.upserts++
	if existing, ok := s.byUserID[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = s.nextID
		s.nextID++
	}
	copied := *sub
	s.byUserID[sub.UserID] = &copied
	return nil
}

func (s *fakeSubscriptionStore) GetByUserID(userID uint) (*models.Subscription, error) {
	sub, ok := s.byUserID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (s *fakeSubscriptionStore) GetByProviderSubscriptionID(providerSubID string) (*models.Subscription, error) {
	for _, sub := range s.byUserID {
		if sub.ProviderSubscriptionID == providerSubID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeSubscriptionStore) Update(sub *models.Subscription) error {
	s.updates++
	copied := *sub
	s.byUserID[sub.UserID] = &copied
	return nil
}

type usageReset struct {
	userID      uint
	periodStart time.Time
	periodEnd   time.Time
}

type fakeUsageStore struct {
	resets []usageReset
}

func (s *fakeUsageStore) ResetForPeriod(userID uint, periodStart, periodEnd time.Time) error {
	s.resets = append(s.resets, usageReset{userID: userID, periodStart: periodStart, periodEnd: periodEnd})
	return nil
}

func (s *fakeUsageStore) GetCurrent(userID uint, now time.Time) (*models.UsageCounter, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeUsageStore) Increment(userID uint, now time.Time, delta int) error { return nil }

type fakeWebhookEventStore struct {
	seen map[string]*models.WebhookEvent
}

func newFakeWebhookEventStore() *fakeWebhookEventStore {
	return &fakeWebhookEventStore{seen: make(map[string]*models.WebhookEvent)}
}

func (s *fakeWebhookEventStore) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := s.seen[key]; ok {
		return false, existing, nil
	}
	event.ID = uint(len(s.seen) + 1)
	copied := *event
	s.seen[key] = &copied
	return true, &copied, nil
}

func (s *fakeWebhookEventStore) MarkProcessed(id uint, processingError string) error {
	for _, event := range s.seen {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func newTestService(plans map[string]*models.Plan) (*Service, *fakeSubscriptionStore, *fakeUsageStore, *fakeWebhookEventStore) {
	subs := newFakeSubscriptionStore()
	usage := &fakeUsageStore{}
	events := newFakeWebhookEventStore()
	service := NewService(&fakePlanStore{byPriceID: plans}, subs, usage, events)
	return service, subs, usage, events
}

func proPlan() map[string]*models.Plan {
	return map[string]*models.Plan{
		"price_pro_monthly": {ID: 2, Code: models.PlanPro, ProviderPriceID: "price_pro_monthly", MonthlyQuota: 100},
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	service, subs, usage, _ := newTestService(proPlan())

	event := &Event{
		ID:   "evt_1",
		Type: EventTypeCheckoutCompleted,
		CheckoutCompleted: &CheckoutCompletedEvent{
			SessionID:      "cs_1",
			UserID:         42,
			CustomerID:     "cus_123",
			SubscriptionID: "sub_456",
			PriceID:        "price_pro_monthly",
		},
	}

	if err := service.ProcessEvent(context.Background(), event, `{"raw":true}`); err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	sub, err := subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("expected subscription row for user 42: %v", err)
	}
	if sub.PlanID != 2 {
		t.Fatalf("PlanID = %d, want 2", sub.PlanID)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("Status = %q, want active", sub.Status)
	}
	if sub.ProviderSubscriptionID != "sub_456" {
		t.Fatalf("ProviderSubscriptionID = %q", sub.ProviderSubscriptionID)
	}

	if len(usage.resets) != 1 {
		t.Fatalf("expected one usage reset, got %d", len(usage.resets))
	}
	if usage.resets[0].userID != 42 {
		t.Fatalf("usage reset for user %d, want 42", usage.resets[0].userID)
	}
	if !usage.resets[0].periodEnd.After(usage.resets[0].periodStart) {
		t.Fatalf("usage period end must follow start")
	}
}

func TestHandleCheckoutCompletedUnknownPrice(t *testing.T) {
	service, subs, usage, _ := newTestService(proPlan())

	event := &Event{
		Type: EventTypeCheckoutCompleted,
		CheckoutCompleted: &CheckoutCompletedEvent{
			UserID:         42,
			SubscriptionID: "sub_456",
			PriceID:        "price_unknown",
		},
	}

	err := service.ProcessEvent(context.Background(), event, "{}")
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("ProcessEvent() error = %v, want ErrPlanNotFound", err)
	}
	if len(subs.byUserID) != 0 {
		t.Fatalf("no subscription row may be written for an unmapped price")
	}
	if len(usage.resets) != 0 {
		t.Fatalf("no usage reset may run for an unmapped price")
	}
}

func TestHandleCheckoutCompletedReplayIsIdempotent(t *testing.T) {
	service, subs, _, _ := newTestService(proPlan())

	event := &Event{
		Type: EventTypeCheckoutCompleted,
		CheckoutCompleted: &CheckoutCompletedEvent{
			UserID:         42,
			CustomerID:     "cus_123",
			SubscriptionID: "sub_456",
			PriceID:        "price_pro_monthly",
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("first ProcessEvent() error = %v", err)
	}
	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("replayed ProcessEvent() error = %v", err)
	}

	if len(subs.byUserID) != 1 {
		t.Fatalf("replay must not create a second row, got %d", len(subs.byUserID))
	}
	if subs.upserts != 2 {
		t.Fatalf("expected 2 upserts against the same key, got %d", subs.upserts)
	}
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	service, subs, _, _ := newTestService(proPlan())

	seed := &models.Subscription{
		UserID:                 42,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_456",
		Status:                 models.SubscriptionStatusActive,
	}
	if err := subs.UpsertByUser(seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	event := &Event{
		Type: EventTypeSubscriptionUpdated,
		SubscriptionUpdated: &SubscriptionEvent{
			SubscriptionID:     "sub_456",
			PriceID:            "price_pro_monthly",
			Status:             models.SubscriptionStatusPastDue,
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
			CancelAtPeriodEnd:  true,
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	sub, err := subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sub.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("Status = %q, want past_due", sub.Status)
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatalf("CancelAtPeriodEnd must carry through")
	}
	if sub.CurrentPeriodStart == nil || !sub.CurrentPeriodStart.Equal(start) {
		t.Fatalf("CurrentPeriodStart = %v, want %v", sub.CurrentPeriodStart, start)
	}
}

func TestHandleSubscriptionUpdatedUnknownPriceIsDropped(t *testing.T) {
	service, subs, _, _ := newTestService(proPlan())

	seed := &models.Subscription{
		UserID:                 42,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_456",
		Status:                 models.SubscriptionStatusActive,
	}
	if err := subs.UpsertByUser(seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	event := &Event{
		Type: EventTypeSubscriptionUpdated,
		SubscriptionUpdated: &SubscriptionEvent{
			SubscriptionID: "sub_456",
			PriceID:        "price_unmapped",
			Status:         models.SubscriptionStatusCanceled,
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("an unmapped price must be dropped without error, got %v", err)
	}

	sub, err := subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("dropped event must not mutate status, got %q", sub.Status)
	}
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	service, subs, _, _ := newTestService(proPlan())

	seed := &models.Subscription{
		UserID:                 42,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_456",
		Status:                 models.SubscriptionStatusActive,
		CancelAtPeriodEnd:      true,
	}
	if err := subs.UpsertByUser(seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	event := &Event{
		Type: EventTypeSubscriptionDeleted,
		SubscriptionDeleted: &SubscriptionEvent{
			SubscriptionID: "sub_456",
			Status:         models.SubscriptionStatusCanceled,
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	sub, err := subs.GetByUserID(42)
	if err != nil {
		t.Fatalf("canceled row must be kept for history: %v", err)
	}
	if sub.Status != models.SubscriptionStatusCanceled {
		t.Fatalf("Status = %q, want canceled", sub.Status)
	}
	if sub.IsEntitling() {
		t.Fatalf("canceled subscription must not entitle")
	}
}

func TestHandleInvoicePaidResetsUsage(t *testing.T) {
	service, subs, usage, _ := newTestService(proPlan())

	seed := &models.Subscription{
		UserID:                 42,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_456",
		Status:                 models.SubscriptionStatusActive,
	}
	if err := subs.UpsertByUser(seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	event := &Event{
		Type: EventTypeInvoicePaymentSucceeded,
		InvoicePaid: &InvoicePaidEvent{
			SubscriptionID: "sub_456",
			PeriodStart:    &start,
			PeriodEnd:      &end,
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	if len(usage.resets) != 1 {
		t.Fatalf("expected one usage reset, got %d", len(usage.resets))
	}
	reset := usage.resets[0]
	if reset.userID != 42 {
		t.Fatalf("reset for user %d, want 42", reset.userID)
	}
	if !reset.periodStart.Equal(start) || !reset.periodEnd.Equal(end) {
		t.Fatalf("reset period %v..%v, want %v..%v", reset.periodStart, reset.periodEnd, start, end)
	}
}

func TestHandleInvoicePaidUnknownSubscription(t *testing.T) {
	service, _, usage, _ := newTestService(proPlan())

	event := &Event{
		Type: EventTypeInvoicePaymentSucceeded,
		InvoicePaid: &InvoicePaidEvent{
			SubscriptionID: "sub_missing",
		},
	}

	if err := service.ProcessEvent(context.Background(), event, "{}"); err == nil {
		t.Fatalf("expected error for unknown subscription")
	}
	if len(usage.resets) != 0 {
		t.Fatalf("no usage reset may run for an unknown subscription")
	}
}

func TestProcessEventIgnoresUnrecognized(t *testing.T) {
	service, subs, usage, _ := newTestService(proPlan())

	event := &Event{ID: "evt_x", Type: "charge.refunded"}
	if err := service.ProcessEvent(context.Background(), event, "{}"); err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if len(subs.byUserID) != 0 || len(usage.resets) != 0 {
		t.Fatalf("unrecognized event must not mutate local state")
	}
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	service, _, _, events := newTestService(proPlan())
	ctx := context.Background()

	created, first, err := service.RecordWebhookEvent(ctx, "evt_1", EventTypeInvoicePaymentSucceeded, "{}", true)
	if err != nil {
		t.Fatalf("RecordWebhookEvent() error = %v", err)
	}
	if !created {
		t.Fatalf("first delivery must create a row")
	}

	created, second, err := service.RecordWebhookEvent(ctx, "evt_1", EventTypeInvoicePaymentSucceeded, "{}", true)
	if err != nil {
		t.Fatalf("RecordWebhookEvent() replay error = %v", err)
	}
	if created {
		t.Fatalf("redelivery of a known event id must not create a row")
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a different row: %d vs %d", second.ID, first.ID)
	}
	if len(events.seen) != 1 {
		t.Fatalf("expected a single stored event, got %d", len(events.seen))
	}

	if err := service.MarkWebhookProcessed(ctx, first.ID, nil); err != nil {
		t.Fatalf("MarkWebhookProcessed() error = %v", err)
	}
	if events.seen[ProviderStripe+"/evt_1"].ProcessedAt == nil {
		t.Fatalf("expected processed_at to be stamped")
	}
}
