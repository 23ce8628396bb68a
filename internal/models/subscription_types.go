package models

import "time"

// Subscription tiers. The tier decides the marketplace fee and feature access.
const (
	TierFree       = "free"
	TierWeekly     = "weekly"
	TierMonthly    = "monthly"
	TierAnnual     = "annual"
	TierCreatorPro = "creator_pro"
	TierEnterprise = "enterprise"
)

// Tiers lists every known tier.
var Tiers = []string{TierFree, TierWeekly, TierMonthly, TierAnnual, TierCreatorPro, TierEnterprise}

// Subscription statuses written by the webhook dispatcher.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionPastDue   = "past_due"
)

// Subscription is one user's plan. There is one logical row per user_id.
type Subscription struct {
	ID                    string     `json:"id" db:"id"`
	UserID                string     `json:"userId" db:"user_id"`
	Tier                  string     `json:"tier" db:"tier"`
	Status                string     `json:"status" db:"status"`
	GatewaySubscriptionID string     `json:"gatewaySubscriptionId" db:"gateway_subscription_id"`
	GatewayPlanID         string     `json:"gatewayPlanId" db:"gateway_plan_id"`
	CurrentPeriodStart    *time.Time `json:"currentPeriodStart,omitempty" db:"current_period_start"`
	CurrentPeriodEnd      *time.Time `json:"currentPeriodEnd,omitempty" db:"current_period_end"`
}

// Record returns the columns to write. Zero-valued fields are left out so
// the result can double as an update patch.
func (s Subscription) Record() map[string]any {
	rec := map[string]any{}
	put(rec, "user_id", s.UserID)
	put(rec, "tier", s.Tier)
	put(rec, "status", s.Status)
	put(rec, "gateway_subscription_id", s.GatewaySubscriptionID)
	put(rec, "gateway_plan_id", s.GatewayPlanID)
	if s.CurrentPeriodStart != nil {
		rec["current_period_start"] = Timestamp(*s.CurrentPeriodStart)
	}
	if s.CurrentPeriodEnd != nil {
		rec["current_period_end"] = Timestamp(*s.CurrentPeriodEnd)
	}
	return rec
}

func put(rec map[string]any, key, value string) {
	if value != "" {
		rec[key] = value
	}
}
