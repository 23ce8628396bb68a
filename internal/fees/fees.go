// Package fees computes the platform's cut of a marketplace sale from the
// seller's subscription tier.
package fees

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinPercent      = 1.0
	MaxPercent      = 20.0
	fallbackPercent = 10.0
)

// DefaultPercents are the built-in per-tier fee percentages.
var DefaultPercents = map[string]float64{
	"free":        12,
	"weekly":      10,
	"monthly":     9,
	"annual":      8,
	"creator_pro": 8,
	"enterprise":  6,
}

// LookupFunc reads a configuration value, reporting whether it was set.
type LookupFunc func(key string) (string, bool)

// Split is the result of a fee computation.
type Split struct {
	Percent float64
	Fee     decimal.Decimal
	Payout  decimal.Decimal
}

// Engine resolves tier percentages, honouring MARKETPLACE_FEE_<TIER>
// overrides from its lookup.
type Engine struct {
	lookup LookupFunc
}

// NewEngine builds an Engine. A nil lookup reads the process environment.
func NewEngine(lookup LookupFunc) *Engine {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Engine{lookup: lookup}
}

// OverrideKey is the configuration key consulted for tier.
func OverrideKey(tier string) string {
	return "MARKETPLACE_FEE_" + strings.ToUpper(tier)
}

// Percent returns the clamped fee percentage for tier. Unknown tiers use the
// free tier's default.
func (e *Engine) Percent(tier string) float64 {
	tier = strings.ToLower(strings.TrimSpace(tier))

	pct, ok := DefaultPercents[tier]
	if !ok {
		pct = DefaultPercents["free"]
	}

	if raw, set := e.lookup(OverrideKey(tier)); set {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			pct = v
		}
	}

	return clamp(pct)
}

// Compute splits amount into the platform fee and the seller payout. The fee
// is rounded to cents and the payout is the remainder, so the two always add
// back up to amount.
func (e *Engine) Compute(amount decimal.Decimal, tier string) Split {
	pct := e.Percent(tier)
	fee := amount.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Round(2)
	return Split{
		Percent: pct,
		Fee:     fee,
		Payout:  amount.Sub(fee),
	}
}

func clamp(pct float64) float64 {
	if math.IsNaN(pct) {
		return fallbackPercent
	}
	return math.Min(MaxPercent, math.Max(MinPercent, pct))
}
