package webhooks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/metadata"
	"github.com/01moynul/creator-commerce/internal/models"
)

func (d *Dispatcher) handlePurchase(ctx context.Context, ev *Event) (Outcome, error) {
	meta := metadata.Decode(ev.CustomID)
	purchaseType := meta["purchase_type"]
	log := d.log.WithFields(logrus.Fields{
		"event_id":      ev.ID,
		"order_id":      ev.OrderID,
		"purchase_type": purchaseType,
	})

	var err error
	switch purchaseType {
	case models.PurchaseAICredits:
		err = d.grantCredits(ctx, log, meta)
	case models.PurchaseMarketplaceAsset:
		err = d.recordSale(ctx, log, ev, meta)
	case models.PurchaseCustomModel:
		err = d.startTraining(ctx, log, meta)
	case models.PurchaseFeaturedAsset:
		err = d.createSponsorship(ctx, log, ev, meta)
	default:
		log.Warn("purchase without a known purchase_type")
	}
	if err != nil {
		return "", err
	}

	data := map[string]any{
		"purchase_type":    purchaseType,
		"gateway_event":    ev.Type,
		"gateway_order_id": ev.OrderID,
	}
	if ev.CaptureID != "" {
		data["gateway_capture_id"] = ev.CaptureID
	}
	if ev.HasAmount {
		data["amount"] = ev.Amount.StringFixed(2)
	}
	d.track(ctx, models.AnalyticsPurchaseCompleted, meta.Get("user_id", "buyer_user_id"), data)
	return OutcomeProcessed, nil
}

// grantCredits adds credit_amount to the user's balance and lifetime total.
func (d *Dispatcher) grantCredits(ctx context.Context, log *logrus.Entry, meta metadata.Metadata) error {
	userID := meta["user_id"]
	credits, err := strconv.ParseFloat(meta["credit_amount"], 64)
	if userID == "" || err != nil || credits <= 0 {
		log.WithField("credit_amount", meta["credit_amount"]).Warn("credit purchase without user or amount")
		return nil
	}

	user, err := d.store.Get(ctx, models.EntityUser, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		log.WithField("user_id", userID).Warn("credit purchase for unknown user")
		return nil
	}

	_, err = d.store.Update(ctx, models.EntityUser, userID, database.Record{
		"ai_credits_remaining":    user.Float("ai_credits_remaining") + credits,
		"total_credits_purchased": user.Float("total_credits_purchased") + credits,
	})
	if err != nil {
		return fmt.Errorf("grant credits to %s: %w", userID, err)
	}
	log.WithFields(logrus.Fields{"user_id": userID, "credits": credits}).Info("granted AI credits")
	return nil
}

// recordSale writes the purchase receipt with the fee split and bumps the
// asset's counters.
func (d *Dispatcher) recordSale(ctx context.Context, log *logrus.Entry, ev *Event, meta metadata.Metadata) error {
	assetID := meta.Get("marketplace_asset_id", "asset_id")
	if assetID == "" {
		log.Warn("marketplace purchase without an asset id")
		return nil
	}

	asset, err := d.store.Get(ctx, models.EntityMarketplaceAsset, assetID)
	if err != nil {
		return fmt.Errorf("load asset %s: %w", assetID, err)
	}

	sellerID := meta["seller_user_id"]
	if sellerID == "" && asset != nil {
		sellerID = asset.String("creator_user_id")
	}

	price := ev.Amount
	if !ev.HasAmount && asset != nil {
		price = decimal.NewFromFloat(asset.Float("price"))
	}

	tier, err := d.sellerTier(ctx, sellerID)
	if err != nil {
		return err
	}
	split := d.fees.Compute(price, tier)

	receipt := models.MarketplacePurchase{
		BuyerUserID:        meta.Get("buyer_user_id", "user_id"),
		SellerUserID:       sellerID,
		MarketplaceAssetID: assetID,
		PricePaid:          price,
		PlatformFee:        split.Fee,
		PlatformFeePercent: split.Percent,
		SellerPayout:       split.Payout,
		GatewayOrderID:     ev.OrderID,
		GatewayCaptureID:   ev.CaptureID,
		Status:             models.PurchaseStatusCompleted,
	}
	if _, err := d.store.Create(ctx, models.EntityMarketplacePurchase, receipt.Record()); err != nil {
		return fmt.Errorf("record purchase of %s: %w", assetID, err)
	}

	if asset == nil {
		log.WithField("asset_id", assetID).Warn("purchased asset not found, counters not updated")
	} else {
		revenue := decimal.NewFromFloat(asset.Float("revenue_total")).Add(price)
		_, err := d.store.Update(ctx, models.EntityMarketplaceAsset, assetID, database.Record{
			"purchase_count": int(asset.Float("purchase_count")) + 1,
			"revenue_total":  revenue.InexactFloat64(),
		})
		if err != nil {
			return fmt.Errorf("update asset %s counters: %w", assetID, err)
		}
	}

	log.WithFields(logrus.Fields{
		"asset_id": assetID,
		"tier":     tier,
		"fee":      split.Fee.StringFixed(2),
		"payout":   split.Payout.StringFixed(2),
	}).Info("recorded marketplace sale")
	d.notify(ctx, sellerID, fmt.Sprintf("Your asset sold for %s (payout %s)", price.StringFixed(2), split.Payout.StringFixed(2)), "/marketplace/assets/"+assetID)
	return nil
}

// sellerTier is the seller's tier when their subscription is active, else
// free.
func (d *Dispatcher) sellerTier(ctx context.Context, sellerID string) (string, error) {
	if sellerID == "" {
		return models.TierFree, nil
	}
	subs, err := d.store.Filter(ctx, models.EntitySubscription, database.Filter{"user_id": sellerID}, "", 1)
	if err != nil {
		return "", fmt.Errorf("load seller %s subscription: %w", sellerID, err)
	}
	if len(subs) == 0 || subs[0].String("status") != models.SubscriptionActive {
		return models.TierFree, nil
	}
	if tier := subs[0].String("tier"); tier != "" {
		return tier, nil
	}
	return models.TierFree, nil
}

func (d *Dispatcher) startTraining(ctx context.Context, log *logrus.Entry, meta metadata.Metadata) error {
	modelID := meta["model_id"]
	if modelID == "" {
		log.Warn("custom model purchase without a model id")
		return nil
	}
	updated, err := d.store.Update(ctx, models.EntityCustomModel, modelID, database.Record{
		"status":              models.ModelStatusTraining,
		"training_started_at": models.Timestamp(d.now()),
	})
	if err != nil {
		return fmt.Errorf("start training %s: %w", modelID, err)
	}
	if updated == nil {
		log.WithField("model_id", modelID).Warn("custom model not found")
		return nil
	}
	d.notify(ctx, meta["user_id"], "Your custom model is now training", "/models/"+modelID)
	return nil
}

func (d *Dispatcher) createSponsorship(ctx context.Context, log *logrus.Entry, ev *Event, meta metadata.Metadata) error {
	assetID := meta.Get("marketplace_asset_id", "asset_id")
	days, err := strconv.Atoi(meta["duration_days"])
	if assetID == "" || err != nil || days <= 0 {
		log.WithField("duration_days", meta["duration_days"]).Warn("featured purchase without asset or duration")
		return nil
	}

	sp := models.NewSponsorship(assetID, meta.Get("user_id", "creator_user_id"), days, ev.Amount, meta["placement_slot"], d.now())
	if _, err := d.store.Create(ctx, models.EntityFeaturedAssetSponsorship, sp.Record()); err != nil {
		return fmt.Errorf("create sponsorship for %s: %w", assetID, err)
	}
	log.WithFields(logrus.Fields{"asset_id": assetID, "days": days, "ends": models.Timestamp(sp.EndDate)}).Info("featured sponsorship started")
	return nil
}
