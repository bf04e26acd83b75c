package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recognized provider event types. Anything else is acknowledged and ignored.
const (
	EventTypeCheckoutCompleted       = "checkout.session.completed"
	EventTypeSubscriptionUpdated     = "customer.subscription.updated"
	EventTypeSubscriptionDeleted     = "customer.subscription.deleted"
	EventTypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
)

// Event is the closed union of webhook payload shapes. Exactly one variant
// pointer is non-nil for a recognized event type; all are nil for ignored
// types. Payloads are validated here at the boundary, before the state
// machine runs.
type Event struct {
	ID   string
	Type string

	CheckoutCompleted   *CheckoutCompletedEvent
	SubscriptionUpdated *SubscriptionEvent
	SubscriptionDeleted *SubscriptionEvent
	InvoicePaid         *InvoicePaidEvent
}

// Recognized reports whether the event drives the subscription state machine.
func (e *Event) Recognized() bool {
	return e.CheckoutCompleted != nil || e.SubscriptionUpdated != nil ||
		e.SubscriptionDeleted != nil || e.InvoicePaid != nil
}

// CheckoutCompletedEvent carries the fields the checkout handler needs from a
// completed checkout session.
type CheckoutCompletedEvent struct {
	SessionID      string
	UserID         uint
	CustomerID     string
	SubscriptionID string
	PriceID        string
}

// SubscriptionEvent carries the provider's authoritative subscription state.
type SubscriptionEvent struct {
	SubscriptionID     string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// InvoicePaidEvent carries the paid billing period for a usage-counter reset.
type InvoicePaidEvent struct {
	SubscriptionID string
	CustomerID     string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type rawCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type rawSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type rawInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Lines        struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// ParseEvent decodes a provider webhook payload into the event union. An
// unrecognized type yields an Event with no variant set; a recognized type
// with a malformed object yields an error.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("event payload missing type")
	}

	event := &Event{ID: strings.TrimSpace(raw.ID), Type: raw.Type}

	switch raw.Type {
	case EventTypeCheckoutCompleted:
		var session rawCheckoutSession
		if err := json.Unmarshal(raw.Data.Object, &session); err != nil {
			return nil, fmt.Errorf("invalid checkout session object: %w", err)
		}
		userID, err := strconv.ParseUint(strings.TrimSpace(session.ClientReferenceID), 10, 32)
		if err != nil || userID == 0 {
			return nil, errors.New("checkout session missing client_reference_id")
		}
		if strings.TrimSpace(session.Subscription) == "" {
			return nil, errors.New("checkout session missing subscription id")
		}
		event.CheckoutCompleted = &CheckoutCompletedEvent{
			SessionID:      strings.TrimSpace(session.ID),
			UserID:         uint(userID),
			CustomerID:     strings.TrimSpace(session.Customer),
			SubscriptionID: strings.TrimSpace(session.Subscription),
			PriceID:        strings.TrimSpace(session.Metadata["price_id"]),
		}

	case EventTypeSubscriptionUpdated, EventTypeSubscriptionDeleted:
		var sub rawSubscription
		if err := json.Unmarshal(raw.Data.Object, &sub); err != nil {
			return nil, fmt.Errorf("invalid subscription object: %w", err)
		}
		if strings.TrimSpace(sub.ID) == "" {
			return nil, errors.New("subscription object missing id")
		}
		priceID := ""
		if len(sub.Items.Data) > 0 {
			priceID = strings.TrimSpace(sub.Items.Data[0].Price.ID)
		}
		parsed := &SubscriptionEvent{
			SubscriptionID:     strings.TrimSpace(sub.ID),
			CustomerID:         strings.TrimSpace(sub.Customer),
			PriceID:            priceID,
			Status:             strings.ToLower(strings.TrimSpace(sub.Status)),
			CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
			CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		}
		if raw.Type == EventTypeSubscriptionUpdated {
			event.SubscriptionUpdated = parsed
		} else {
			event.SubscriptionDeleted = parsed
		}

	case EventTypeInvoicePaymentSucceeded:
		var invoice rawInvoice
		if err := json.Unmarshal(raw.Data.Object, &invoice); err != nil {
			return nil, fmt.Errorf("invalid invoice object: %w", err)
		}
		if strings.TrimSpace(invoice.Subscription) == "" {
			return nil, errors.New("invoice object missing subscription id")
		}
		parsed := &InvoicePaidEvent{
			SubscriptionID: strings.TrimSpace(invoice.Subscription),
			CustomerID:     strings.TrimSpace(invoice.Customer),
		}
		if len(invoice.Lines.Data) > 0 {
			parsed.PeriodStart = unixTime(invoice.Lines.Data[0].Period.Start)
			parsed.PeriodEnd = unixTime(invoice.Lines.Data[0].Period.End)
		}
		event.InvoicePaid = parsed
	}

	return event, nil
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
