package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/gateway"
	"github.com/01moynul/creator-commerce/internal/metadata"
	"github.com/01moynul/creator-commerce/internal/models"
)

const maxFeaturedDays = 90

//
// --- Checkout Handlers (Login Required) ---
//

// CreateOrderInput is the body of POST /v1/checkout/orders
type CreateOrderInput struct {
	PurchaseType       string `json:"purchase_type" binding:"required"`
	CreditPack         string `json:"credit_pack"`
	MarketplaceAssetID string `json:"marketplace_asset_id"`
	ModelID            string `json:"model_id"`
	DurationDays       int    `json:"duration_days"`
	PlacementSlot      string `json:"placement_slot"`
}

// CreateCheckoutOrder is the handler for POST /v1/checkout/orders
// The price is always computed here; the client only says what it buys.
func (h *Handlers) CreateCheckoutOrder(c *gin.Context) {
	// 1. --- Get User ID ---
	userID := c.GetString("userID")

	// 2. --- Bind Input ---
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. --- Price The Purchase ---
	var price decimal.Decimal
	var description string
	meta := map[string]any{"purchase_type": input.PurchaseType}

	switch input.PurchaseType {
	case models.PurchaseAICredits:
		pack, ok := models.CreditPacks[input.CreditPack]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown credit pack"})
			return
		}
		price = pack.Price
		description = strconv.Itoa(pack.Credits) + " AI credits"
		meta["user_id"] = userID
		meta["credit_amount"] = pack.Credits

	case models.PurchaseMarketplaceAsset:
		asset, ok := h.loadRecord(c, models.EntityMarketplaceAsset, input.MarketplaceAssetID, "Asset")
		if !ok {
			return
		}
		sellerID := asset.String("creator_user_id")
		if sellerID == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot buy your own asset"})
			return
		}
		price = decimal.NewFromFloat(asset.Float("price"))
		if !price.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This asset is not for sale"})
			return
		}
		description = "Marketplace asset " + asset.String("title")
		meta["buyer_user_id"] = userID
		meta["seller_user_id"] = sellerID
		meta["marketplace_asset_id"] = input.MarketplaceAssetID

	case models.PurchaseCustomModel:
		model, ok := h.loadRecord(c, models.EntityCustomModel, input.ModelID, "Model")
		if !ok {
			return
		}
		if owner := model.String("user_id"); owner != "" && owner != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "You do not own this model"})
			return
		}
		price = h.Pricing.CustomModel
		description = "Custom AI model training"
		meta["user_id"] = userID
		meta["model_id"] = input.ModelID

	case models.PurchaseFeaturedAsset:
		if input.DurationDays < 1 || input.DurationDays > maxFeaturedDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_days must be between 1 and 90"})
			return
		}
		asset, ok := h.loadRecord(c, models.EntityMarketplaceAsset, input.MarketplaceAssetID, "Asset")
		if !ok {
			return
		}
		if asset.String("creator_user_id") != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "You can only feature your own assets"})
			return
		}
		slot := input.PlacementSlot
		if slot == "" {
			slot = "homepage"
		}
		price = h.Pricing.FeaturedPerDay.Mul(decimal.NewFromInt(int64(input.DurationDays)))
		description = "Featured placement, " + strconv.Itoa(input.DurationDays) + " days"
		meta["user_id"] = userID
		meta["marketplace_asset_id"] = input.MarketplaceAssetID
		meta["duration_days"] = input.DurationDays
		meta["placement_slot"] = slot

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown purchase_type"})
		return
	}

	// 4. --- Create Gateway Order ---
	order, err := h.Gateway.CreateOrder(c.Request.Context(), gateway.OrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []gateway.PurchaseUnit{{
			Description: description,
			CustomID:    metadata.Encode(meta),
			Amount:      gateway.Amount{CurrencyCode: h.currency(), Value: price.StringFixed(2)},
		}},
		ApplicationContext: &gateway.ApplicationContext{
			ReturnURL:  h.PublicBaseURL + "/checkout/success",
			CancelURL:  h.PublicBaseURL + "/checkout/cancel",
			UserAction: "PAY_NOW",
		},
	})
	if err != nil {
		h.gatewayError(c, err)
		return
	}

	// 5. --- Success ---
	c.JSON(http.StatusCreated, gin.H{
		"order_id":     order.ID,
		"status":       order.Status,
		"amount":       price.StringFixed(2),
		"approval_url": gateway.ApprovalLink(order.Links),
	})
}

// CaptureCheckoutOrder is the handler for POST /v1/checkout/orders/:id/capture
// Fulfilment happens when the capture webhook arrives, not here.
func (h *Handlers) CaptureCheckoutOrder(c *gin.Context) {
	order, err := h.Gateway.CaptureOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "status": order.Status})
}

// CreateSubscriptionInput is the body of POST /v1/checkout/subscriptions
type CreateSubscriptionInput struct {
	Tier string `json:"tier" binding:"required"`
}

// CreateSubscriptionCheckout is the handler for POST /v1/checkout/subscriptions
func (h *Handlers) CreateSubscriptionCheckout(c *gin.Context) {
	// 1. --- Get User ID & Input ---
	userID := c.GetString("userID")
	var input CreateSubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Find Plan ---
	planID, ok := h.Plans.PlanID(input.Tier)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No billing plan configured for this tier"})
		return
	}

	// 3. --- Create Gateway Subscription ---
	// The webhook maps the subscription back to this user via custom_id.
	sub, err := h.Gateway.CreateSubscription(c.Request.Context(), gateway.SubscriptionRequest{
		PlanID:   planID,
		CustomID: metadata.Encode(map[string]any{"user_id": userID}),
		ApplicationContext: &gateway.ApplicationContext{
			ReturnURL:  h.PublicBaseURL + "/billing/success",
			CancelURL:  h.PublicBaseURL + "/billing/cancel",
			UserAction: "SUBSCRIBE_NOW",
		},
	})
	if err != nil {
		h.gatewayError(c, err)
		return
	}

	// 4. --- Success ---
	c.JSON(http.StatusCreated, gin.H{
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"approval_url":    gateway.ApprovalLink(sub.Links),
	})
}

// loadRecord fetches entity id or writes the error response itself.
func (h *Handlers) loadRecord(c *gin.Context, entity, id, label string) (database.Record, bool) {
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": label + " id is required"})
		return nil, false
	}
	rec, err := h.Catalog.Get(c.Request.Context(), entity, id)
	if err != nil {
		h.Log.WithError(err).WithField("entity", entity).Error("catalog lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load " + label})
		return nil, false
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": label + " not found"})
		return nil, false
	}
	return rec, true
}

func (h *Handlers) gatewayError(c *gin.Context, err error) {
	h.Log.WithError(err).Error("payment gateway call failed")

	var cfgErr *gateway.ConfigError
	var protoErr *gateway.ProtocolError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
	case errors.As(err, &protoErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway rejected the request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment gateway unavailable"})
	}
}

func (h *Handlers) currency() string {
	if h.Pricing.Currency == "" {
		return "USD"
	}
	return h.Pricing.Currency
}
