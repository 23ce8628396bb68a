package main

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/config"
	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/logging"
)

// app is the process-wide wiring shared by every command.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *database.Store
	db    *sql.DB
}

func loadApp() (*app, error) {
	// 0. --- Load Environment Variables (.env) ---
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// 1. --- Entity Store ---
	a := &app{cfg: cfg, log: log}
	var backend database.Backend
	switch cfg.StoreDriver {
	case config.DriverMySQL, config.DriverPostgres:
		a.db, err = database.OpenDB(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to primary database: %w", err)
		}
		backend = database.NewSQLBackend(a.db, cfg.StoreDriver)
	case config.DriverREST:
		backend, err = database.NewRESTBackend(cfg.REST())
		if err != nil {
			return nil, err
		}
	case config.DriverMemory:
		log.Warn("using the in-memory store; nothing will survive a restart")
		backend = database.NewMemoryBackend(
			"users", "subscriptions", "marketplace_purchases", "marketplace_assets",
			"featured_asset_sponsorships", "analytics_events", "custom_models", "webhook_events",
		)
	}
	a.store = database.NewStore(backend, log)

	log.WithField("store_driver", cfg.StoreDriver).Info("entity store ready")
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
