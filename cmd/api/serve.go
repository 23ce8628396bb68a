package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/01moynul/creator-commerce/internal/auth"
	"github.com/01moynul/creator-commerce/internal/fees"
	"github.com/01moynul/creator-commerce/internal/gateway"
	"github.com/01moynul/creator-commerce/internal/handlers"
	"github.com/01moynul/creator-commerce/internal/jobs"
	"github.com/01moynul/creator-commerce/internal/middleware"
	"github.com/01moynul/creator-commerce/internal/notify"
	"github.com/01moynul/creator-commerce/internal/routes"
	"github.com/01moynul/creator-commerce/internal/webhooks"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background sweeps",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	// 2. --- Payment Gateway & Fees ---
	gw := gateway.New(cfg.Gateway(), log)
	if cfg.PayPalWebhookID == "" {
		log.Warn("PAYPAL_WEBHOOK_ID is not set: webhook signatures will NOT be verified")
	}
	feeEngine := fees.NewEngine(cfg.FeeLookup())
	plans := cfg.PlanTable()

	dispatcher := webhooks.NewDispatcher(a.store, feeEngine, log, webhooks.Options{
		Plans:      plans,
		Notifier:   notify.NewLogNotifier(log),
		Idempotent: cfg.WebhookIdempotency,
	})

	// 3. --- Auth ---
	issuer, err := auth.NewIssuer(cfg.JWTSecret)
	if err != nil {
		return err
	}

	// --- Application Setup ---
	h := &handlers.Handlers{
		Gateway:    gw,
		Dispatcher: dispatcher,
		Catalog:    a.store,
		Fees:       feeEngine,
		Plans:      plans,
		Pricing: handlers.Pricing{
			FeaturedPerDay: cfg.FeaturedPricePerDay,
			CustomModel:    cfg.CustomModelPrice,
		},
		PublicBaseURL: cfg.PublicBaseURL,
		Log:           log.WithField("component", "handlers"),
	}

	// 4. --- Background Workers (Cron) ---
	sweeper := jobs.NewSponsorshipSweeper(a.store, log, nil)
	scheduler := cron.New()
	if _, err := sweeper.Schedule(scheduler, cfg.SponsorshipSweepSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	log.WithField("schedule", cfg.SponsorshipSweepSchedule).Info("background worker started: expiring featured placements")

	// --- Router Setup ---
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(h, routes.Options{
		Tokens:     issuer,
		Limiter:    middleware.NewRateLimiter(cfg.CheckoutRateLimit, cfg.CheckoutBurst, log),
		CORSOrigin: cfg.CORSOrigin,
	})

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting creator commerce API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
