package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/gateway"
	"github.com/01moynul/creator-commerce/internal/models"
	"github.com/01moynul/creator-commerce/internal/webhooks"
)

// Gateway is the payment gateway surface used by the handlers.
type Gateway interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.Subscription, error)
}

// EventDispatcher applies a parsed webhook event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev *webhooks.Event) (webhooks.Outcome, error)
}

// Catalog reads the records checkout prices come from.
type Catalog interface {
	Get(ctx context.Context, entity, id string) (database.Record, error)
}

// FeeSchedule reports the marketplace fee for a tier.
type FeeSchedule interface {
	Percent(tier string) float64
}

// Pricing holds the server-side prices that are not stored per record.
type Pricing struct {
	FeaturedPerDay decimal.Decimal
	CustomModel    decimal.Decimal
	Currency       string
}

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Gateway       Gateway
	Dispatcher    EventDispatcher
	Catalog       Catalog
	Fees          FeeSchedule
	Plans         models.PlanTable
	Pricing       Pricing
	PublicBaseURL string
	Log           *logrus.Entry
}
