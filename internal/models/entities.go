package models

import "time"

// Logical entity names, resolved to physical tables by database.Store.
const (
	EntityUser                     = "User"
	EntitySubscription             = "Subscription"
	EntityMarketplacePurchase      = "MarketplacePurchase"
	EntityMarketplaceAsset         = "MarketplaceAsset"
	EntityFeaturedAssetSponsorship = "FeaturedAssetSponsorship"
	EntityAnalyticsEvent           = "AnalyticsEvent"
	EntityCustomModel              = "CustomModel"
	EntityWebhookEvent             = "WebhookEvent"
)

// Timestamp formats t the way every record stores times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
