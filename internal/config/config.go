// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/fees"
	"github.com/01moynul/creator-commerce/internal/gateway"
	"github.com/01moynul/creator-commerce/internal/models"
)

// Store drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverREST     = "rest"
	DriverMemory   = "memory"
)

// Config is every setting the API reads at startup.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreDriver string
	DatabaseDSN string
	SupabaseURL string
	SupabaseKey string

	PayPalMode         string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalWebhookID    string
	PayPalAPIBase      string

	AllowUnverifiedWebhooks bool
	WebhookIdempotency      bool

	JWTSecret         string
	CheckoutRateLimit float64
	CheckoutBurst     int
	PublicBaseURL     string
	CORSOrigin        string

	FeaturedPricePerDay      decimal.Decimal
	CustomModelPrice         decimal.Decimal
	SponsorshipSweepSchedule string

	// PlanIDs maps tier to the gateway billing plan id.
	PlanIDs map[string]string

	v *viper.Viper
}

// Load reads envFiles (default ".env") into the environment, then builds a
// Config from it. Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logrus.WithField("file", f).Debug("no env file loaded")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("STORE_DRIVER", DriverMySQL)
	v.SetDefault("PAYPAL_MODE", gateway.ModeSandbox)
	v.SetDefault("WEBHOOK_ALLOW_UNVERIFIED", false)
	v.SetDefault("WEBHOOK_IDEMPOTENCY", false)
	v.SetDefault("FEATURED_PRICE_PER_DAY", "5.00")
	v.SetDefault("CUSTOM_MODEL_PRICE", "29.99")
	v.SetDefault("SPONSORSHIP_SWEEP_SCHEDULE", "@every 15m")
	v.SetDefault("CHECKOUT_RATE_LIMIT", 2.0)
	v.SetDefault("CHECKOUT_RATE_BURST", 5)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("CORS_ORIGIN", "http://localhost:5173")

	cfg := &Config{
		Port:      v.GetString("PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseDSN: v.GetString("DB_DSN_PRIMARY"),
		SupabaseURL: v.GetString("SUPABASE_URL"),
		SupabaseKey: v.GetString("SUPABASE_SERVICE_KEY"),

		PayPalMode:         strings.ToLower(v.GetString("PAYPAL_MODE")),
		PayPalClientID:     v.GetString("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: v.GetString("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookID:    v.GetString("PAYPAL_WEBHOOK_ID"),
		PayPalAPIBase:      v.GetString("PAYPAL_API_BASE"),

		AllowUnverifiedWebhooks: v.GetBool("WEBHOOK_ALLOW_UNVERIFIED"),
		WebhookIdempotency:      v.GetBool("WEBHOOK_IDEMPOTENCY"),

		JWTSecret:         v.GetString("JWT_SECRET"),
		CheckoutRateLimit: v.GetFloat64("CHECKOUT_RATE_LIMIT"),
		CheckoutBurst:     v.GetInt("CHECKOUT_RATE_BURST"),
		PublicBaseURL:     strings.TrimSuffix(v.GetString("PUBLIC_BASE_URL"), "/"),
		CORSOrigin:        v.GetString("CORS_ORIGIN"),

		SponsorshipSweepSchedule: v.GetString("SPONSORSHIP_SWEEP_SCHEDULE"),
		PlanIDs:                  map[string]string{},
		v:                        v,
	}

	var err error
	if cfg.FeaturedPricePerDay, err = decimal.NewFromString(v.GetString("FEATURED_PRICE_PER_DAY")); err != nil {
		return nil, fmt.Errorf("FEATURED_PRICE_PER_DAY: %w", err)
	}
	if cfg.CustomModelPrice, err = decimal.NewFromString(v.GetString("CUSTOM_MODEL_PRICE")); err != nil {
		return nil, fmt.Errorf("CUSTOM_MODEL_PRICE: %w", err)
	}

	for _, tier := range models.Tiers {
		if planID := v.GetString("PAYPAL_PLAN_" + strings.ToUpper(tier)); planID != "" {
			cfg.PlanIDs[tier] = planID
		}
	}
	return cfg, nil
}

// Validate rejects settings the API cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverMySQL, DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DB_DSN_PRIMARY is required for SQL store drivers"))
		}
	case DriverREST:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the rest store driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.PayPalMode != gateway.ModeSandbox && c.PayPalMode != gateway.ModeLive {
		errs = append(errs, fmt.Errorf("PAYPAL_MODE must be %q or %q", gateway.ModeSandbox, gateway.ModeLive))
	}
	if c.PayPalMode == gateway.ModeLive && c.PayPalWebhookID == "" && !c.AllowUnverifiedWebhooks {
		errs = append(errs, errors.New("PAYPAL_WEBHOOK_ID is required in live mode (set WEBHOOK_ALLOW_UNVERIFIED=true to override)"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	return errors.Join(errs...)
}

// FeeLookup reads MARKETPLACE_FEE_<TIER> overrides.
func (c *Config) FeeLookup() fees.LookupFunc {
	return func(key string) (string, bool) {
		if !c.v.IsSet(key) {
			return "", false
		}
		return c.v.GetString(key), true
	}
}

// PlanTable maps configured plan ids back to tiers.
func (c *Config) PlanTable() models.PlanTable {
	return models.NewPlanTable(c.PlanIDs)
}

// Gateway returns the payment gateway client settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		Mode:         c.PayPalMode,
		ClientID:     c.PayPalClientID,
		ClientSecret: c.PayPalClientSecret,
		WebhookID:    c.PayPalWebhookID,
		BaseURL:      c.PayPalAPIBase,
	}
}

// REST returns the PostgREST backend settings.
func (c *Config) REST() database.RESTConfig {
	return database.RESTConfig{URL: c.SupabaseURL, APIKey: c.SupabaseKey}
}
