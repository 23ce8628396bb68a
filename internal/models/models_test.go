package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTable(t *testing.T) {
	plans := NewPlanTable(map[string]string{TierMonthly: "P-M", TierAnnual: "", TierWeekly: "P-W"})

	tier, ok := plans.Tier("P-M")
	assert.True(t, ok)
	assert.Equal(t, TierMonthly, tier)

	_, ok = plans.Tier("P-UNKNOWN")
	assert.False(t, ok)

	_, ok = plans.PlanID(TierAnnual)
	assert.False(t, ok, "tiers without a plan id are not purchasable")

	planID, ok := plans.PlanID(TierWeekly)
	assert.True(t, ok)
	assert.Equal(t, "P-W", planID)
}

func TestNewSponsorshipWindow(t *testing.T) {
	start := time.Date(2026, 1, 30, 12, 0, 0, 0, time.FixedZone("X", 3600))
	sp := NewSponsorship("A1", "U1", 7, decimal.RequireFromString("35"), "homepage", start)

	assert.Equal(t, SponsorshipActive, sp.Status)
	rec := sp.Record()
	assert.Equal(t, "2026-01-30T11:00:00Z", rec["start_date"])
	assert.Equal(t, "2026-02-06T11:00:00Z", rec["end_date"])
	assert.Equal(t, 35.0, rec["price_paid"])
	assert.Equal(t, 7, rec["duration_days"])
}

func TestSubscriptionRecordSkipsEmptyFields(t *testing.T) {
	rec := Subscription{UserID: "U1", Status: SubscriptionActive}.Record()
	assert.Equal(t, map[string]any{"user_id": "U1", "status": "active"}, rec)

	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec = Subscription{Tier: TierAnnual, CurrentPeriodEnd: &end}.Record()
	assert.Equal(t, "2026-03-01T10:00:00Z", rec["current_period_end"])
	assert.NotContains(t, rec, "current_period_start")
}

func TestAnalyticsEventStoresJSON(t *testing.T) {
	rec := AnalyticsEvent{
		EventType: AnalyticsPurchaseCompleted,
		UserID:    "U1",
		EventData: map[string]any{"amount": "9.99"},
		CreatedAt: "2026-03-01T00:00:00Z",
	}.Record()

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec["event_data"].(string)), &data))
	assert.Equal(t, "9.99", data["amount"])
	assert.Equal(t, "U1", rec["user_id"])

	rec = AnalyticsEvent{EventType: AnalyticsPaymentFailed}.Record()
	assert.Equal(t, "{}", rec["event_data"])
	assert.NotContains(t, rec, "user_id")
}

func TestCreditPacks(t *testing.T) {
	for id, pack := range CreditPacks {
		assert.Equal(t, id, pack.ID)
		assert.True(t, pack.Price.IsPositive())
		assert.Positive(t, pack.Credits)
	}
}
