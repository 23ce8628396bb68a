package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/fees"
	"github.com/01moynul/creator-commerce/internal/gateway"
	"github.com/01moynul/creator-commerce/internal/metadata"
	"github.com/01moynul/creator-commerce/internal/models"
	"github.com/01moynul/creator-commerce/internal/webhooks"
)

type fakeGateway struct {
	verified  bool
	verifyErr error
	orderErr  error

	orders []gateway.OrderRequest
	subs   []gateway.SubscriptionRequest
}

func (g *fakeGateway) VerifyWebhookSignature(context.Context, http.Header, []byte) (bool, error) {
	return g.verified, g.verifyErr
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, req)
	return &gateway.Order{
		ID:     "O-1",
		Status: "CREATED",
		Links:  []gateway.Link{{Rel: "approve", Href: "https://pay.example/approve/O-1"}},
	}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string) (*gateway.Order, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	return &gateway.Order{ID: id, Status: "COMPLETED"}, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, req gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	g.subs = append(g.subs, req)
	return &gateway.Subscription{
		ID:     "I-1",
		Status: "APPROVAL_PENDING",
		Links:  []gateway.Link{{Rel: "approve", Href: "https://pay.example/approve/I-1"}},
	}, nil
}

type env struct {
	h       *Handlers
	gw      *fakeGateway
	backend *database.MemoryBackend
	router  *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend := database.NewMemoryBackend("users", "subscriptions", "marketplace_purchases",
		"marketplace_assets", "featured_asset_sponsorships", "analytics_events", "custom_models")
	store := database.NewStore(backend, logger)
	engine := fees.NewEngine(func(string) (string, bool) { return "", false })
	plans := models.PlanTable{"P-MONTHLY": models.TierMonthly}

	e := &env{gw: &fakeGateway{verified: true}, backend: backend}
	e.h = &Handlers{
		Gateway:    e.gw,
		Dispatcher: webhooks.NewDispatcher(store, engine, logger, webhooks.Options{Plans: plans}),
		Catalog:    store,
		Fees:       engine,
		Plans:      plans,
		Pricing: Pricing{
			FeaturedPerDay: decimal.RequireFromString("5.00"),
			CustomModel:    decimal.RequireFromString("29.99"),
		},
		PublicBaseURL: "https://app.example",
		Log:           logger.WithField("component", "handlers"),
	}

	r := gin.New()
	asUser := func(c *gin.Context) { c.Set("userID", "U1"); c.Next() }
	r.POST("/v1/webhooks/paypal", e.h.HandlePayPalWebhook)
	r.GET("/v1/subscriptions/plans", e.h.GetSubscriptionPlans)
	r.GET("/v1/checkout/credit-packs", e.h.GetCreditPacks)
	r.POST("/v1/checkout/orders", asUser, e.h.CreateCheckoutOrder)
	r.POST("/v1/checkout/orders/:id/capture", asUser, e.h.CaptureCheckoutOrder)
	r.POST("/v1/checkout/subscriptions", asUser, e.h.CreateSubscriptionCheckout)
	e.router = r
	return e
}

func (e *env) seed(t *testing.T, table string, rec database.Record) {
	t.Helper()
	_, err := e.backend.Insert(context.Background(), table, rec)
	require.NoError(t, err)
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

const creditCapture = `{
	"id": "WH-1",
	"event_type": "PAYMENT.CAPTURE.COMPLETED",
	"resource": {
		"id": "CAP-1",
		"custom_id": "credit_amount=100&purchase_type=ai_credits&user_id=U1",
		"amount": {"currency_code": "USD", "value": "9.99"},
		"supplementary_data": {"related_ids": {"order_id": "O-1"}}
	}
}`

func TestWebhookProcessesVerifiedEvent(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "users", database.Record{"id": "U1", "ai_credits_remaining": 5})

	w, body := e.do(t, http.MethodPost, "/v1/webhooks/paypal", creditCapture)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["received"])

	user := e.backend.Rows("users")[0]
	assert.InDelta(t, 105, user.Float("ai_credits_remaining"), 1e-9)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "users", database.Record{"id": "U1", "ai_credits_remaining": 5})
	e.gw.verified = false

	w, body := e.do(t, http.MethodPost, "/v1/webhooks/paypal", creditCapture)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "signature")

	user := e.backend.Rows("users")[0]
	assert.InDelta(t, 5, user.Float("ai_credits_remaining"), 1e-9)
	assert.Empty(t, e.backend.Rows("analytics_events"))
}

func TestWebhookVerificationErrorIs500(t *testing.T) {
	e := newEnv(t)
	e.gw.verifyErr = errors.New("token endpoint down")

	w, _ := e.do(t, http.MethodPost, "/v1/webhooks/paypal", creditCapture)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	e := newEnv(t)

	w, _ := e.do(t, http.MethodPost, "/v1/webhooks/paypal", `{"resource": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookStoreFailureIs500(t *testing.T) {
	e := newEnv(t)
	// No "subscriptions" table can be resolved for this backend.
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := database.NewStore(database.NewMemoryBackend("analytics_events"), logger)
	e.h.Dispatcher = webhooks.NewDispatcher(store, fees.NewEngine(nil), logger, webhooks.Options{})

	event := `{"id": "WH-9", "event_type": "BILLING.SUBSCRIPTION.CANCELLED", "resource": {"id": "I-1"}}`
	w, _ := e.do(t, http.MethodPost, "/v1/webhooks/paypal", event)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateCreditOrderPricesServerSide(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "ai_credits", "credit_pack": "creator"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "O-1", body["order_id"])
	assert.Equal(t, "https://pay.example/approve/O-1", body["approval_url"])

	require.Len(t, e.gw.orders, 1)
	unit := e.gw.orders[0].PurchaseUnits[0]
	assert.Equal(t, "39.99", unit.Amount.Value)
	assert.Equal(t, "USD", unit.Amount.CurrencyCode)
	meta := metadata.Decode(unit.CustomID)
	assert.Equal(t, "ai_credits", meta["purchase_type"])
	assert.Equal(t, "U1", meta["user_id"])
	assert.Equal(t, "500", meta["credit_amount"])
	assert.Equal(t, "https://app.example/checkout/success", e.gw.orders[0].ApplicationContext.ReturnURL)
}

func TestCreateMarketplaceOrder(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "marketplace_assets", database.Record{"id": "A1", "creator_user_id": "S1", "price": 20.0, "title": "Preset"})

	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "marketplace_asset", "marketplace_asset_id": "A1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	unit := e.gw.orders[0].PurchaseUnits[0]
	assert.Equal(t, "20.00", unit.Amount.Value)
	meta := metadata.Decode(unit.CustomID)
	assert.Equal(t, "U1", meta["buyer_user_id"])
	assert.Equal(t, "S1", meta["seller_user_id"])
	assert.Equal(t, "A1", meta["marketplace_asset_id"])
}

func TestCreateMarketplaceOrderRejectsOwnAssetAndMissing(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "marketplace_assets", database.Record{"id": "A1", "creator_user_id": "U1", "price": 20.0})

	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "marketplace_asset", "marketplace_asset_id": "A1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "marketplace_asset", "marketplace_asset_id": "NOPE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, e.gw.orders)
}

func TestCreateFeaturedOrder(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "marketplace_assets", database.Record{"id": "A1", "creator_user_id": "U1", "price": 20.0})

	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "featured_asset", "marketplace_asset_id": "A1", "duration_days": 7}`)
	require.Equal(t, http.StatusCreated, w.Code)

	unit := e.gw.orders[0].PurchaseUnits[0]
	assert.Equal(t, "35.00", unit.Amount.Value)
	meta := metadata.Decode(unit.CustomID)
	assert.Equal(t, "7", meta["duration_days"])
	assert.Equal(t, "homepage", meta["placement_slot"])

	w, _ = e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "featured_asset", "marketplace_asset_id": "A1", "duration_days": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCustomModelOrder(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "custom_models", database.Record{"id": "M1", "user_id": "U1"})

	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "custom_ai_model", "model_id": "M1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "29.99", e.gw.orders[0].PurchaseUnits[0].Amount.Value)
}

func TestCreateOrderRejectsUnknownType(t *testing.T) {
	e := newEnv(t)

	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "gift_card"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/v1/checkout/orders", `{"purchase_type": "ai_credits", "credit_pack": "mega"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatewayErrorsMapToStatus(t *testing.T) {
	e := newEnv(t)
	body := `{"purchase_type": "ai_credits", "credit_pack": "starter"}`

	e.gw.orderErr = &gateway.ConfigError{Field: "PAYPAL_CLIENT_ID"}
	w, _ := e.do(t, http.MethodPost, "/v1/checkout/orders", body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	e.gw.orderErr = &gateway.ProtocolError{Op: "POST /v2/checkout/orders", Status: 422}
	w, _ = e.do(t, http.MethodPost, "/v1/checkout/orders", body)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	e.gw.orderErr = errors.New("dial tcp: timeout")
	w, _ = e.do(t, http.MethodPost, "/v1/checkout/orders/O-1/capture", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCaptureOrder(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodPost, "/v1/checkout/orders/O-7/capture", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "O-7", body["order_id"])
	assert.Equal(t, "COMPLETED", body["status"])
}

func TestCreateSubscriptionCheckout(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodPost, "/v1/checkout/subscriptions", `{"tier": "monthly"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "I-1", body["subscription_id"])

	require.Len(t, e.gw.subs, 1)
	assert.Equal(t, "P-MONTHLY", e.gw.subs[0].PlanID)
	assert.Equal(t, "user_id=U1", e.gw.subs[0].CustomID)

	w, _ = e.do(t, http.MethodPost, "/v1/checkout/subscriptions", `{"tier": "annual"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubscriptionPlans(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodGet, "/v1/subscriptions/plans", "")
	require.Equal(t, http.StatusOK, w.Code)

	plans := body["plans"].([]any)
	require.Len(t, plans, len(models.Tiers))
	byTier := map[string]map[string]any{}
	for _, p := range plans {
		m := p.(map[string]any)
		byTier[m["tier"].(string)] = m
	}
	assert.Equal(t, true, byTier["monthly"]["purchasable"])
	assert.Equal(t, "P-MONTHLY", byTier["monthly"]["plan_id"])
	assert.Equal(t, false, byTier["annual"]["purchasable"])
	assert.Equal(t, 12.0, byTier["free"]["marketplace_fee_percent"])
	assert.Equal(t, 9.0, byTier["monthly"]["marketplace_fee_percent"])
}

func TestGetCreditPacksSorted(t *testing.T) {
	e := newEnv(t)

	w, body := e.do(t, http.MethodGet, "/v1/checkout/credit-packs", "")
	require.Equal(t, http.StatusOK, w.Code)

	packs := body["credit_packs"].([]any)
	require.Len(t, packs, 3)
	assert.Equal(t, "starter", packs[0].(map[string]any)["id"])
	assert.Equal(t, "studio", packs[2].(map[string]any)["id"])
}
