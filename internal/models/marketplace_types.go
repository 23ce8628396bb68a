package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase types carried in the order's custom metadata.
const (
	PurchaseAICredits        = "ai_credits"
	PurchaseMarketplaceAsset = "marketplace_asset"
	PurchaseCustomModel      = "custom_ai_model"
	PurchaseFeaturedAsset    = "featured_asset"
)

const (
	PurchaseStatusCompleted = "completed"
	SponsorshipActive       = "active"
	SponsorshipExpired      = "expired"
	ModelStatusTraining     = "training"
)

// MarketplacePurchase is the immutable receipt of one asset sale.
type MarketplacePurchase struct {
	BuyerUserID        string          `json:"buyerUserId" db:"buyer_user_id"`
	SellerUserID       string          `json:"sellerUserId" db:"seller_user_id"`
	MarketplaceAssetID string          `json:"marketplaceAssetId" db:"marketplace_asset_id"`
	PricePaid          decimal.Decimal `json:"pricePaid" db:"price_paid"`
	PlatformFee        decimal.Decimal `json:"platformFee" db:"platform_fee"`
	PlatformFeePercent float64         `json:"platformFeePercent" db:"platform_fee_percent"`
	SellerPayout       decimal.Decimal `json:"sellerPayout" db:"seller_payout"`
	GatewayOrderID     string          `json:"gatewayOrderId" db:"gateway_order_id"`
	GatewayCaptureID   string          `json:"gatewayCaptureId" db:"gateway_capture_id"`
	Status             string          `json:"status" db:"status"`
}

func (p MarketplacePurchase) Record() map[string]any {
	return map[string]any{
		"buyer_user_id":        p.BuyerUserID,
		"seller_user_id":       p.SellerUserID,
		"marketplace_asset_id": p.MarketplaceAssetID,
		"price_paid":           p.PricePaid.InexactFloat64(),
		"platform_fee":         p.PlatformFee.InexactFloat64(),
		"platform_fee_percent": p.PlatformFeePercent,
		"seller_payout":        p.SellerPayout.InexactFloat64(),
		"gateway_order_id":     p.GatewayOrderID,
		"gateway_capture_id":   p.GatewayCaptureID,
		"status":               p.Status,
	}
}

// FeaturedAssetSponsorship is a paid placement window for an asset.
type FeaturedAssetSponsorship struct {
	MarketplaceAssetID string          `json:"marketplaceAssetId" db:"marketplace_asset_id"`
	CreatorUserID      string          `json:"creatorUserId" db:"creator_user_id"`
	DurationDays       int             `json:"durationDays" db:"duration_days"`
	PricePaid          decimal.Decimal `json:"pricePaid" db:"price_paid"`
	StartDate          time.Time       `json:"startDate" db:"start_date"`
	EndDate            time.Time       `json:"endDate" db:"end_date"`
	PlacementSlot      string          `json:"placementSlot" db:"placement_slot"`
	Status             string          `json:"status" db:"status"`
}

// NewSponsorship starts a window at start lasting days.
func NewSponsorship(assetID, creatorID string, days int, price decimal.Decimal, slot string, start time.Time) FeaturedAssetSponsorship {
	return FeaturedAssetSponsorship{
		MarketplaceAssetID: assetID,
		CreatorUserID:      creatorID,
		DurationDays:       days,
		PricePaid:          price,
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, days),
		PlacementSlot:      slot,
		Status:             SponsorshipActive,
	}
}

func (s FeaturedAssetSponsorship) Record() map[string]any {
	return map[string]any{
		"marketplace_asset_id": s.MarketplaceAssetID,
		"creator_user_id":      s.CreatorUserID,
		"duration_days":        s.DurationDays,
		"price_paid":           s.PricePaid.InexactFloat64(),
		"start_date":           Timestamp(s.StartDate),
		"end_date":             Timestamp(s.EndDate),
		"placement_slot":       s.PlacementSlot,
		"status":               s.Status,
	}
}
