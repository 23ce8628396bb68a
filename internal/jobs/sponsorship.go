// Package jobs holds the background work scheduled next to the API.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/metrics"
	"github.com/01moynul/creator-commerce/internal/models"
)

const sweepTimeout = 2 * time.Minute

// Store is the subset of database.Store the sweep needs.
type Store interface {
	Filter(ctx context.Context, entity string, filter database.Filter, sort string, limit int) ([]database.Record, error)
	Update(ctx context.Context, entity, id string, patch database.Record) (database.Record, error)
}

// SponsorshipSweeper expires featured placements whose end_date has passed.
type SponsorshipSweeper struct {
	store Store
	log   *logrus.Entry
	now   func() time.Time
}

func NewSponsorshipSweeper(store Store, logger *logrus.Logger, now func() time.Time) *SponsorshipSweeper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &SponsorshipSweeper{store: store, log: logger.WithField("component", "sponsorship_sweep"), now: now}
}

// Sweep marks every active sponsorship past its end_date as expired and
// returns how many it changed.
func (s *SponsorshipSweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.store.Filter(ctx, models.EntityFeaturedAssetSponsorship,
		database.Filter{"status": models.SponsorshipActive}, "end_date", 0)
	if err != nil {
		return 0, fmt.Errorf("list active sponsorships: %w", err)
	}

	now := s.now()
	expired := 0
	for _, row := range rows {
		end, ok := row.Time("end_date")
		if !ok {
			s.log.WithField("sponsorship_id", row.ID()).Warn("sponsorship has unreadable end_date")
			continue
		}
		if end.After(now) {
			continue
		}
		if _, err := s.store.Update(ctx, models.EntityFeaturedAssetSponsorship, row.ID(),
			database.Record{"status": models.SponsorshipExpired}); err != nil {
			return expired, fmt.Errorf("expire sponsorship %s: %w", row.ID(), err)
		}
		expired++
	}

	metrics.RecordSponsorshipsExpired(expired)
	if expired > 0 {
		s.log.WithField("expired", expired).Info("expired featured sponsorships")
	}
	return expired, nil
}

// Schedule registers the sweep on c using a cron spec such as "@every 15m".
func (s *SponsorshipSweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("sponsorship sweep failed")
		}
	})
}
