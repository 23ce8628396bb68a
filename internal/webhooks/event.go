// Package webhooks turns verified gateway notifications into state changes:
// credit grants, marketplace receipts, sponsorships and subscription sync.
package webhooks

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Gateway event types the dispatcher acts on.
const (
	OrderApproved          = "CHECKOUT.ORDER.APPROVED"
	CaptureCompleted       = "PAYMENT.CAPTURE.COMPLETED"
	SubscriptionCreated    = "BILLING.SUBSCRIPTION.CREATED"
	SubscriptionActivated  = "BILLING.SUBSCRIPTION.ACTIVATED"
	SubscriptionUpdated    = "BILLING.SUBSCRIPTION.UPDATED"
	SubscriptionCancelled  = "BILLING.SUBSCRIPTION.CANCELLED"
	SubscriptionExpired    = "BILLING.SUBSCRIPTION.EXPIRED"
	SubscriptionSuspended  = "BILLING.SUBSCRIPTION.SUSPENDED"
	SubscriptionPayFailure = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
)

var ErrInvalidEvent = errors.New("invalid webhook event")

// Event is the part of a gateway notification the dispatcher reads.
type Event struct {
	ID         string
	Type       string
	ResourceID string
	CustomID   string

	Amount    decimal.Decimal
	HasAmount bool
	Currency  string

	OrderID   string
	CaptureID string

	PlanID          string
	Status          string
	StartTime       *time.Time
	NextBillingTime *time.Time

	Raw []byte
}

// ParseEvent extracts an Event from a raw webhook body.
func ParseEvent(raw []byte) (*Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidEvent
	}
	root := gjson.ParseBytes(raw)
	ev := &Event{
		ID:   root.Get("id").String(),
		Type: root.Get("event_type").String(),
		Raw:  raw,
	}
	if ev.Type == "" {
		return nil, ErrInvalidEvent
	}

	res := root.Get("resource")
	ev.ResourceID = res.Get("id").String()
	ev.CustomID = first(res, "custom_id", "purchase_units.0.custom_id")

	if v := first(res, "amount.value", "purchase_units.0.amount.value"); v != "" {
		if amt, err := decimal.NewFromString(v); err == nil {
			ev.Amount = amt
			ev.HasAmount = true
		}
	}
	ev.Currency = first(res, "amount.currency_code", "purchase_units.0.amount.currency_code")

	switch {
	case strings.HasPrefix(ev.Type, "CHECKOUT.ORDER."):
		ev.OrderID = ev.ResourceID
		ev.CaptureID = res.Get("purchase_units.0.payments.captures.0.id").String()
	case strings.HasPrefix(ev.Type, "PAYMENT.CAPTURE."):
		ev.CaptureID = ev.ResourceID
		ev.OrderID = res.Get("supplementary_data.related_ids.order_id").String()
	}

	ev.PlanID = res.Get("plan_id").String()
	ev.Status = strings.ToLower(res.Get("status").String())
	ev.StartTime = parseTime(res.Get("start_time").String())
	ev.NextBillingTime = parseTime(res.Get("billing_info.next_billing_time").String())

	return ev, nil
}

func first(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
