// Package risk implements Kelly position sizing, stop-loss management, and
// the circuit breaker gate (spec §4.2-§4.4).
package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/money"
)

// SizingConfig configures KellySizer's cap pipeline (spec §4.2).
type SizingConfig struct {
	MaxPositionPct   decimal.Decimal // per-position cap, e.g. 0.25
	MaxTotalExposure decimal.Decimal // portfolio-heat cap, e.g. 1.0
	MinPositionSize  decimal.Decimal // absolute dollar floor
	MaxPositionSize  decimal.Decimal // absolute dollar ceiling
}

// DefaultSizingConfig mirrors the scenario defaults used in spec §8 S3.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		MaxPositionPct:   decimal.NewFromFloat(0.25),
		MaxTotalExposure: decimal.NewFromFloat(1.0),
		MinPositionSize:  decimal.NewFromInt(100),
		MaxPositionSize:  decimal.NewFromInt(50000),
	}
}

// Result is the outcome of a position-sizing calculation.
type Result struct {
	DollarSize   decimal.Decimal
	Shares       int64
	RawKellyPct  decimal.Decimal
	AdjustedPct  decimal.Decimal
	Rationale    string
}

// KellySizer computes target position size from edge and portfolio state.
// It reads a small snapshot value per call rather than holding a
// back-reference to the PaperTrader, breaking the cyclic dependency Design
// Note 9 calls out between the trader and its risk components.
type KellySizer struct {
	cfg SizingConfig

	mu             sync.Mutex
	accountBalance decimal.Decimal
	positions      map[string]decimal.Decimal // symbol -> |position value|
}

// NewKellySizer constructs a sizer with the given cap configuration.
func NewKellySizer(cfg SizingConfig) *KellySizer {
	return &KellySizer{
		cfg:       cfg,
		positions: make(map[string]decimal.Decimal),
	}
}

// UpdateAccountBalance sets the account balance used for heat calculations.
func (k *KellySizer) UpdateAccountBalance(balance decimal.Decimal) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.accountBalance = balance
}

// UpdatePositions replaces the tracked position-value snapshot.
func (k *KellySizer) UpdatePositions(positions map[string]decimal.Decimal) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.positions = make(map[string]decimal.Decimal, len(positions))
	for sym, v := range positions {
		if v.IsNegative() {
			v = v.Neg()
		}
		k.positions[sym] = v
	}
}

// GetPortfolioHeat returns sum(|position value|) / account_balance.
func (k *KellySizer) GetPortfolioHeat() decimal.Decimal {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.heatLocked()
}

func (k *KellySizer) heatLocked() decimal.Decimal {
	if k.accountBalance.IsZero() {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, v := range k.positions {
		total = total.Add(v)
	}
	return total.Div(k.accountBalance)
}

// GetMaxPositionValue returns the current per-position dollar cap given the
// account balance.
func (k *KellySizer) GetMaxPositionValue() decimal.Decimal {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.accountBalance.Mul(k.cfg.MaxPositionPct)
}

// CalculatePositionSize runs the Kelly formula and cap pipeline described in
// spec §4.2. price/symbol are optional; when price is provided, Shares and a
// recomputed DollarSize are populated.
func (k *KellySizer) CalculatePositionSize(winRate, avgWin, avgLoss, fraction decimal.Decimal, price *decimal.Decimal, symbol string) Result {
	zero := decimal.Zero

	if winRate.IsNegative() || winRate.GreaterThan(decimal.NewFromInt(1)) {
		return Result{Rationale: "win_rate must be in [0,1]"}
	}
	if !avgWin.IsPositive() {
		return Result{Rationale: "avg_win must be positive"}
	}
	if !avgLoss.IsPositive() {
		return Result{Rationale: "avg_loss must be positive"}
	}
	if fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return Result{Rationale: "fraction must be in [0,1]"}
	}

	// k = (W*R - L) / R, R = avg_win/avg_loss, L = 1-W
	r := avgWin.Div(avgLoss)
	l := decimal.NewFromInt(1).Sub(winRate)
	rawKelly := winRate.Mul(r).Sub(l).Div(r)

	if !rawKelly.IsPositive() {
		return Result{RawKellyPct: rawKelly, Rationale: "Negative edge"}
	}

	// 1. Fractional Kelly
	adjusted := rawKelly.Mul(fraction)

	// 2. Per-position cap
	if adjusted.GreaterThan(k.cfg.MaxPositionPct) {
		adjusted = k.cfg.MaxPositionPct
	}

	k.mu.Lock()
	balance := k.accountBalance
	heat := k.heatLocked()
	existing := decimal.Zero
	if symbol != "" {
		existing = k.positions[symbol]
	}
	k.mu.Unlock()

	// 3. Portfolio-heat cap: replaceable existing weight is added back.
	existingWeight := zero
	if balance.IsPositive() {
		existingWeight = existing.Div(balance)
	}
	available := k.cfg.MaxTotalExposure.Sub(heat).Add(existingWeight)
	if available.IsNegative() {
		available = zero
	}
	if adjusted.GreaterThan(available) {
		adjusted = available
	}
	if adjusted.IsNegative() {
		adjusted = zero
	}

	dollars := adjusted.Mul(balance)

	// 4. Absolute dollar caps
	dollars = money.Clamp(dollars, k.cfg.MinPositionSize, k.cfg.MaxPositionSize)
	if dollars.IsNegative() {
		dollars = zero
	}

	result := Result{
		DollarSize:  dollars,
		RawKellyPct: rawKelly,
		AdjustedPct: adjusted,
		Rationale:   fmt.Sprintf("Kelly %.4f, fractional %.4f, capped to $%s", rawKelly.InexactFloat64(), fraction.InexactFloat64(), dollars.StringFixed(2)),
	}

	// 5. Share rounding
	if price != nil && price.IsPositive() {
		shares := money.RoundShares(dollars.Div(*price))
		result.Shares = shares
		result.DollarSize = decimal.NewFromInt(shares).Mul(*price)
	}

	return result
}
