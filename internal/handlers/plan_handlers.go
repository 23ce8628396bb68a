package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/creator-commerce/internal/models"
)

//
// --- Public Catalogue Handlers ---
//

// planView is one tier as shown on the pricing page.
type planView struct {
	Tier                  string  `json:"tier"`
	PlanID                string  `json:"plan_id,omitempty"`
	Purchasable           bool    `json:"purchasable"`
	MarketplaceFeePercent float64 `json:"marketplace_fee_percent"`
}

// GetSubscriptionPlans is the handler for GET /v1/subscriptions/plans
func (h *Handlers) GetSubscriptionPlans(c *gin.Context) {
	plans := make([]planView, 0, len(models.Tiers))
	for _, tier := range models.Tiers {
		planID, ok := h.Plans.PlanID(tier)
		plans = append(plans, planView{
			Tier:                  tier,
			PlanID:                planID,
			Purchasable:           ok,
			MarketplaceFeePercent: h.Fees.Percent(tier),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetCreditPacks is the handler for GET /v1/checkout/credit-packs
func (h *Handlers) GetCreditPacks(c *gin.Context) {
	packs := make([]models.CreditPack, 0, len(models.CreditPacks))
	for _, p := range models.CreditPacks {
		packs = append(packs, p)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Credits < packs[j].Credits })
	c.JSON(http.StatusOK, gin.H{"credit_packs": packs})
}
