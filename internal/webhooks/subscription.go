package webhooks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/metadata"
	"github.com/01moynul/creator-commerce/internal/models"
)

// handleSubscriptionSync upserts the user's single Subscription row.
func (d *Dispatcher) handleSubscriptionSync(ctx context.Context, ev *Event) (Outcome, error) {
	userID := metadata.Decode(ev.CustomID)["user_id"]
	log := d.log.WithFields(logrus.Fields{"event_id": ev.ID, "subscription_id": ev.ResourceID})

	var existing database.Record
	var err error
	if userID != "" {
		existing, err = d.findSubscription(ctx, database.Filter{"user_id": userID})
	} else {
		existing, err = d.findSubscription(ctx, database.Filter{"gateway_subscription_id": ev.ResourceID})
		if existing != nil {
			userID = existing.String("user_id")
		}
	}
	if err != nil {
		return "", err
	}
	if userID == "" {
		log.Warn("subscription event for unknown user, skipping")
		return OutcomeSkipped, nil
	}

	tier, ok := d.plans.Tier(ev.PlanID)
	if !ok {
		tier = models.TierFree
		if existing != nil && existing.String("tier") != "" {
			tier = existing.String("tier")
		}
		log.WithField("plan_id", ev.PlanID).Warn("unknown plan id")
	}

	sub := models.Subscription{
		UserID:                userID,
		Tier:                  tier,
		Status:                ev.Status,
		GatewaySubscriptionID: ev.ResourceID,
		GatewayPlanID:         ev.PlanID,
		CurrentPeriodStart:    ev.StartTime,
		CurrentPeriodEnd:      ev.NextBillingTime,
	}
	if existing != nil {
		if _, err := d.store.Update(ctx, models.EntitySubscription, existing.ID(), sub.Record()); err != nil {
			return "", fmt.Errorf("update subscription for %s: %w", userID, err)
		}
	} else {
		if _, err := d.store.Create(ctx, models.EntitySubscription, sub.Record()); err != nil {
			return "", fmt.Errorf("create subscription for %s: %w", userID, err)
		}
	}

	log.WithFields(logrus.Fields{"user_id": userID, "tier": tier, "status": ev.Status}).Info("subscription synced")
	d.track(ctx, models.AnalyticsSubscriptionUpdated, userID, map[string]any{
		"tier":                    tier,
		"status":                  ev.Status,
		"gateway_subscription_id": ev.ResourceID,
		"gateway_event":           ev.Type,
	})
	return OutcomeProcessed, nil
}

func (d *Dispatcher) handleSubscriptionCancelled(ctx context.Context, ev *Event) (Outcome, error) {
	return d.transition(ctx, ev, models.SubscriptionCancelled, models.AnalyticsSubscriptionCancelled)
}

func (d *Dispatcher) handlePaymentFailed(ctx context.Context, ev *Event) (Outcome, error) {
	return d.transition(ctx, ev, models.SubscriptionPastDue, models.AnalyticsPaymentFailed)
}

// transition sets the status of the subscription named by the event. An
// unknown subscription is left alone.
func (d *Dispatcher) transition(ctx context.Context, ev *Event, status, analytics string) (Outcome, error) {
	log := d.log.WithFields(logrus.Fields{"event_id": ev.ID, "subscription_id": ev.ResourceID, "status": status})

	existing, err := d.findSubscription(ctx, database.Filter{"gateway_subscription_id": ev.ResourceID})
	if err != nil {
		return "", err
	}
	if existing == nil {
		log.Info("no stored subscription for event, nothing to do")
		return OutcomeSkipped, nil
	}

	patch := database.Record{"status": status}
	if status == models.SubscriptionCancelled {
		patch["cancelled_at"] = models.Timestamp(d.now())
	}
	if _, err := d.store.Update(ctx, models.EntitySubscription, existing.ID(), patch); err != nil {
		return "", fmt.Errorf("set subscription %s %s: %w", ev.ResourceID, status, err)
	}

	userID := existing.String("user_id")
	log.WithField("user_id", userID).Info("subscription status changed")
	d.track(ctx, analytics, userID, map[string]any{
		"gateway_subscription_id": ev.ResourceID,
		"gateway_event":           ev.Type,
		"previous_status":         existing.String("status"),
	})
	if status == models.SubscriptionPastDue {
		d.notify(ctx, userID, "We couldn't process your subscription payment. Please update your payment method.", "/billing")
	}
	return OutcomeProcessed, nil
}

func (d *Dispatcher) findSubscription(ctx context.Context, filter database.Filter) (database.Record, error) {
	rows, err := d.store.Filter(ctx, models.EntitySubscription, filter, "", 1)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
