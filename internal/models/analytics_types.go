package models

import "encoding/json"

// Analytics event types appended by the dispatcher.
const (
	AnalyticsPurchaseCompleted     = "purchase_completed"
	AnalyticsSubscriptionUpdated   = "subscription_updated"
	AnalyticsSubscriptionCancelled = "subscription_cancelled"
	AnalyticsPaymentFailed         = "payment_failed"
)

// AnalyticsEvent is one append-only audit row.
type AnalyticsEvent struct {
	EventType string         `json:"eventType" db:"event_type"`
	UserID    string         `json:"userId" db:"user_id"`
	EventData map[string]any `json:"eventData" db:"event_data"`
	CreatedAt string         `json:"createdAt" db:"created_date"`
}

// Record stores event_data as a JSON string so every backend can hold it.
func (e AnalyticsEvent) Record() map[string]any {
	data, err := json.Marshal(e.EventData)
	if err != nil || e.EventData == nil {
		data = []byte("{}")
	}
	rec := map[string]any{
		"event_type":   e.EventType,
		"event_data":   string(data),
		"created_date": e.CreatedAt,
	}
	if e.UserID != "" {
		rec["user_id"] = e.UserID
	}
	return rec
}

// WebhookEvent marks a gateway delivery as processed.
type WebhookEvent struct {
	Key         string `json:"key" db:"id"`
	EventID     string `json:"eventId" db:"event_id"`
	EventType   string `json:"eventType" db:"event_type"`
	ProcessedAt string `json:"processedAt" db:"processed_at"`
}

func (w WebhookEvent) Record() map[string]any {
	return map[string]any{
		"id":           w.Key,
		"event_id":     w.EventID,
		"event_type":   w.EventType,
		"processed_at": w.ProcessedAt,
	}
}
