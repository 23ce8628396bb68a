package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/fees"
	"github.com/01moynul/creator-commerce/internal/metrics"
	"github.com/01moynul/creator-commerce/internal/models"
	"github.com/01moynul/creator-commerce/internal/notify"
)

// Store is the entity capability the dispatcher mutates through.
type Store interface {
	Filter(ctx context.Context, entity string, filter database.Filter, sort string, limit int) ([]database.Record, error)
	Get(ctx context.Context, entity, id string) (database.Record, error)
	Create(ctx context.Context, entity string, data database.Record) (database.Record, error)
	Update(ctx context.Context, entity, id string, patch database.Record) (database.Record, error)
}

// FeeEngine splits a sale into platform fee and seller payout.
type FeeEngine interface {
	Compute(amount decimal.Decimal, tier string) fees.Split
}

// Outcome says what Dispatch did with an event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
)

// Options tune a Dispatcher. Zero values are usable.
type Options struct {
	Plans    models.PlanTable
	Notifier notify.Notifier
	// Idempotent records each handled event in the WebhookEvent ledger and
	// skips deliveries already recorded there.
	Idempotent bool
	Now        func() time.Time
}

// Dispatcher routes gateway events to their entity mutations. It keeps no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	store      Store
	fees       FeeEngine
	plans      models.PlanTable
	notifier   notify.Notifier
	idempotent bool
	now        func() time.Time
	log        *logrus.Entry
	tracer     trace.Tracer
}

func NewDispatcher(store Store, feeEngine FeeEngine, logger *logrus.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Plans == nil {
		opts.Plans = models.PlanTable{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(logger)
	}
	return &Dispatcher{
		store:      store,
		fees:       feeEngine,
		plans:      opts.Plans,
		notifier:   opts.Notifier,
		idempotent: opts.Idempotent,
		now:        opts.Now,
		log:        logger.WithField("component", "webhooks"),
		tracer:     otel.Tracer("github.com/01moynul/creator-commerce/internal/webhooks"),
	}
}

// Dispatch applies ev. Branch mutations are not transactional: an error
// part-way through can leave earlier writes applied.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) (Outcome, error) {
	ctx, span := d.tracer.Start(ctx, "webhooks.dispatch", trace.WithAttributes(
		attribute.String("event.type", ev.Type),
		attribute.String("event.id", ev.ID),
	))
	defer span.End()

	outcome, err := d.dispatch(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordWebhookEvent(ev.Type, "error")
		return outcome, err
	}
	span.SetAttributes(attribute.String("event.outcome", string(outcome)))
	metrics.RecordWebhookEvent(ev.Type, string(outcome))
	return outcome, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *Event) (Outcome, error) {
	var handle func(context.Context, *Event) (Outcome, error)
	switch ev.Type {
	case OrderApproved, CaptureCompleted:
		handle = d.handlePurchase
	case SubscriptionCreated, SubscriptionActivated, SubscriptionUpdated:
		handle = d.handleSubscriptionSync
	case SubscriptionCancelled, SubscriptionExpired, SubscriptionSuspended:
		handle = d.handleSubscriptionCancelled
	case SubscriptionPayFailure:
		handle = d.handlePaymentFailed
	default:
		d.log.WithField("event_type", ev.Type).Debug("ignoring webhook event")
		return OutcomeIgnored, nil
	}

	key := ledgerKey(ev)
	if d.idempotent && key != "" {
		seen, err := d.store.Get(ctx, models.EntityWebhookEvent, key)
		if err != nil {
			return "", fmt.Errorf("check webhook ledger: %w", err)
		}
		if seen != nil {
			d.log.WithFields(logrus.Fields{"event_id": ev.ID, "key": key}).Info("duplicate webhook delivery")
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := handle(ctx, ev)
	if err != nil {
		return outcome, err
	}

	if d.idempotent && key != "" && outcome == OutcomeProcessed {
		entry := models.WebhookEvent{
			Key:         key,
			EventID:     ev.ID,
			EventType:   ev.Type,
			ProcessedAt: models.Timestamp(d.now()),
		}
		if _, err := d.store.Create(ctx, models.EntityWebhookEvent, entry.Record()); err != nil {
			d.log.WithError(err).WithField("key", key).Error("failed to record webhook in ledger")
		}
	}
	return outcome, nil
}

// ledgerKey groups the approval and capture of one order under one key.
func ledgerKey(ev *Event) string {
	switch ev.Type {
	case OrderApproved, CaptureCompleted:
		if ev.OrderID != "" {
			return "purchase:" + ev.OrderID
		}
	}
	if ev.ID == "" {
		return ""
	}
	return "event:" + ev.ID
}

// track appends an analytics row. Failures are logged, never returned.
func (d *Dispatcher) track(ctx context.Context, eventType, userID string, data map[string]any) {
	row := models.AnalyticsEvent{
		EventType: eventType,
		UserID:    userID,
		EventData: data,
		CreatedAt: models.Timestamp(d.now()),
	}
	if _, err := d.store.Create(ctx, models.EntityAnalyticsEvent, row.Record()); err != nil {
		d.log.WithError(err).WithField("event_type", eventType).Error("failed to write analytics event")
	}
}

func (d *Dispatcher) notify(ctx context.Context, userID, message, link string) {
	if userID == "" {
		return
	}
	n := models.Notification{UserID: userID, Message: message, Link: link}
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.log.WithError(err).WithField("user_id", userID).Warn("notification failed")
	}
}
