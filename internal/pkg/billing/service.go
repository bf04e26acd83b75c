package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/database"
)

// ProviderStripe tags webhook events and subscription rows from Stripe.
const ProviderStripe = "stripe"

// ErrPlanNotFound marks an update event whose price has no local plan
// mapping; the event is logged and dropped without mutating local state.
var ErrPlanNotFound = errors.New("no plan mapped to provider price")

// Service reconciles local subscription and usage rows against provider
// webhook events.
type Service struct {
	plans  repository.PlanRepository
	subs   repository.SubscriptionRepository
	usage  repository.UsageRepository
	events repository.WebhookEventRepository
}

// NewService creates a billing service from injected repositories.
func NewService(plans repository.PlanRepository, subs repository.SubscriptionRepository, usage repository.UsageRepository, events repository.WebhookEventRepository) *Service {
	return &Service{plans: plans, subs: subs, usage: usage, events: events}
}

// NewServiceFromDB creates a billing service wired to the shared DB.
func NewServiceFromDB() *Service {
	db := database.GetDB()
	return NewService(
		repository.NewPlanRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewUsageRepository(db),
		repository.NewWebhookEventRepository(db),
	)
}

// RecordWebhookEvent persists webhook payloads idempotently. Returns
// created=false when the provider redelivered a known event id.
func (s *Service) RecordWebhookEvent(ctx context.Context, eventID, eventType, payloadJSON string, signatureValid bool) (bool, *models.WebhookEvent, error) {
	_ = ctx
	event := &models.WebhookEvent{
		Provider:        ProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     payloadJSON,
		SignatureValid:  signatureValid,
	}
	return s.events.CreateIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.events.MarkProcessed(webhookEventID, errMsg)
}

// ProcessEvent dispatches one parsed event into the state machine. Events
// with no variant set are acknowledged without local mutation.
func (s *Service) ProcessEvent(ctx context.Context, event *Event, rawPayload string) error {
	switch {
	case event.CheckoutCompleted != nil:
		return s.handleCheckoutCompleted(ctx, event.CheckoutCompleted, rawPayload)
	case event.SubscriptionUpdated != nil:
		return s.handleSubscriptionUpdated(ctx, event.SubscriptionUpdated, rawPayload)
	case event.SubscriptionDeleted != nil:
		return s.handleSubscriptionDeleted(ctx, event.SubscriptionDeleted)
	case event.InvoicePaid != nil:
		return s.handleInvoicePaid(ctx, event.InvoicePaid)
	default:
		return nil
	}
}

// handleCheckoutCompleted upserts the subscription row keyed by user id and
// resets the usage counter for the opening billing period.
func (s *Service) handleCheckoutCompleted(ctx context.Context, ev *CheckoutCompletedEvent, rawPayload string) error {
	_ = ctx
	plan, err := s.plans.GetByProviderPriceID(ev.PriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: price=%s", ErrPlanNotFound, ev.PriceID)
		}
		return err
	}

	now := time.Now().UTC()
	periodStart := now
	periodEnd := now.AddDate(0, 1, 0)

	sub := &models.Subscription{
		UserID:                 ev.UserID,
		PlanID:                 plan.ID,
		ProviderCustomerID:     ev.CustomerID,
		ProviderSubscriptionID: ev.SubscriptionID,
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodStart:     &periodStart,
		CurrentPeriodEnd:       &periodEnd,
		RawPayloadJSON:         rawPayload,
	}
	if err := s.subs.UpsertByUser(sub); err != nil {
		return err
	}

	return s.usage.ResetForPeriod(ev.UserID, periodStart, periodEnd)
}

// handleSubscriptionUpdated overwrites the matched row with the provider's
// authoritative state. A price with no mapped plan is logged and dropped.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, ev *SubscriptionEvent, rawPayload string) error {
	_ = ctx
	plan, err := s.plans.GetByProviderPriceID(ev.PriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: dropping subscription update %s: no plan for price %s", ev.SubscriptionID, ev.PriceID)
			return nil
		}
		return err
	}

	sub, err := s.subs.GetByProviderSubscriptionID(ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription lookup failed for %s: %w", ev.SubscriptionID, err)
	}

	sub.PlanID = plan.ID
	sub.Status = ev.Status
	sub.CurrentPeriodStart = ev.CurrentPeriodStart
	sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	sub.RawPayloadJSON = rawPayload
	if ev.CustomerID != "" {
		sub.ProviderCustomerID = ev.CustomerID
	}
	return s.subs.Update(sub)
}

// handleSubscriptionDeleted closes the row with a terminal status; the row is
// kept for history.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev *SubscriptionEvent) error {
	_ = ctx
	sub, err := s.subs.GetByProviderSubscriptionID(ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription lookup failed for %s: %w", ev.SubscriptionID, err)
	}

	sub.Status = models.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = false
	return s.subs.Update(sub)
}

// handleInvoicePaid resolves the owning user from the stored subscription row
// and resets the usage counter for the newly paid period.
func (s *Service) handleInvoicePaid(ctx context.Context, ev *InvoicePaidEvent) error {
	_ = ctx
	sub, err := s.subs.GetByProviderSubscriptionID(ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription lookup failed for %s: %w", ev.SubscriptionID, err)
	}

	periodStart := time.Now().UTC()
	periodEnd := periodStart.AddDate(0, 1, 0)
	if ev.PeriodStart != nil {
		periodStart = *ev.PeriodStart
	}
	if ev.PeriodEnd != nil {
		periodEnd = *ev.PeriodEnd
	}

	return s.usage.ResetForPeriod(sub.UserID, periodStart, periodEnd)
}
