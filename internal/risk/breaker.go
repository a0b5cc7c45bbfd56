package risk

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/domain"
)

// BreakerConfig holds the five independent risk thresholds (spec §4.4).
type BreakerConfig struct {
	DailyLossLimit             decimal.Decimal
	MaxDrawdownLimit           decimal.Decimal
	ConsecutiveLossLimit       int
	VolatilityThreshold        decimal.Decimal
	RapidDrawdownLimit         decimal.Decimal
	RapidDrawdownWindow        time.Duration
	AutoResetHours             time.Duration
	Location                   *time.Location
}

// DefaultBreakerConfig matches the thresholds used in spec §8's scenarios,
// with the remaining defaults (max drawdown, volatility threshold, auto-reset
// cooldown) taken from the original CircuitBreaker's constructor defaults
// where the spec itself leaves the number open.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		DailyLossLimit:       decimal.NewFromFloat(0.03),
		MaxDrawdownLimit:     decimal.NewFromFloat(0.10),
		ConsecutiveLossLimit: 5,
		VolatilityThreshold:  decimal.NewFromInt(40),
		RapidDrawdownLimit:   decimal.NewFromFloat(0.05),
		RapidDrawdownWindow:  60 * time.Minute,
		AutoResetHours:       24 * time.Hour,
		Location:             time.UTC,
	}
}

// ValueSample is one point in the recent portfolio-value history used for
// the rapid-drawdown check.
type ValueSample struct {
	At    time.Time
	Value decimal.Decimal
}

// CheckResult is the outcome of a Check call.
type CheckResult struct {
	Allowed  bool
	Tripped  []domain.BreakerKind
	Reasons  []string
	Warnings []string
}

// CircuitBreaker is the global trading gate: five independent breakers,
// each ARMED or TRIPPED, that together decide whether new execution plans
// may begin (spec §4.4).
type CircuitBreaker struct {
	cfg BreakerConfig

	mu               sync.Mutex
	states           map[domain.BreakerKind]*domain.BreakerState
	startOfDayValue  decimal.Decimal
	currentDay       time.Time
	peakValue        decimal.Decimal
	recentHistory    []ValueSample
	consecutiveLoss  int
	tradeHistory     []TradeOutcome
	volTrippedAt     *time.Time
}

// TradeOutcome is a bounded (last 100) record of recent trade P&L.
type TradeOutcome struct {
	PnL decimal.Decimal
	At  time.Time
}

// NewCircuitBreaker constructs a breaker seeded with the initial portfolio
// value as both peak and start-of-day value.
func NewCircuitBreaker(cfg BreakerConfig, initialValue decimal.Decimal) *CircuitBreaker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	states := make(map[domain.BreakerKind]*domain.BreakerState)
	for _, kind := range []domain.BreakerKind{
		domain.BreakerDailyLoss, domain.BreakerMaxDrawdown, domain.BreakerConsecutiveLosses,
		domain.BreakerVolatilitySpike, domain.BreakerRapidDrawdown, domain.BreakerManual,
	} {
		states[kind] = &domain.BreakerState{Kind: kind, State: domain.StateArmed}
	}
	now := time.Now().In(cfg.Location)
	return &CircuitBreaker{
		cfg:             cfg,
		states:          states,
		startOfDayValue: initialValue,
		currentDay:      startOfDay(now),
		peakValue:       initialValue,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Check evaluates every breaker kind against the supplied portfolio state
// and returns whether new plans may begin. Any negative or non-numeric
// portfolio value, or any panic during evaluation, is treated as a
// fail-safe halt (spec §4.4, §7).
func (b *CircuitBreaker) Check(current decimal.Decimal, startOfDayValue *decimal.Decimal, recentTrades []TradeOutcome, vix *decimal.Decimal) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{Allowed: false, Reasons: []string{"FAIL-SAFE halt"}}
		}
	}()

	if current.IsNegative() {
		return CheckResult{Allowed: false, Reasons: []string{"FAIL-SAFE halt"}}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.rolloverIfNewDay(current, startOfDayValue)

	if current.GreaterThan(b.peakValue) {
		b.peakValue = current
	}

	b.recentHistory = append(b.recentHistory, ValueSample{At: time.Now(), Value: current})
	b.pruneHistoryLocked()

	result.Allowed = true

	b.checkDailyLossLocked(current, &result)
	b.checkMaxDrawdownLocked(current, &result)
	b.checkConsecutiveLossesLocked(recentTrades, &result)
	b.checkVolatilitySpikeLocked(vix, &result)
	b.checkRapidDrawdownLocked(current, &result)

	for kind, st := range b.states {
		if kind == domain.BreakerManual {
			continue
		}
		if st.State == domain.StateTripped {
			result.Allowed = false
			result.Tripped = append(result.Tripped, kind)
			if st.Reason != "" {
				result.Reasons = append(result.Reasons, fmt.Sprintf("%s: %s", kind, st.Reason))
			}
		}
	}
	if b.states[domain.BreakerManual].State == domain.StateTripped {
		result.Allowed = false
		result.Tripped = append(result.Tripped, domain.BreakerManual)
		result.Reasons = append(result.Reasons, "MANUAL: operator halt")
	}

	return result
}

func (b *CircuitBreaker) rolloverIfNewDay(current decimal.Decimal, startOfDayValue *decimal.Decimal) {
	now := time.Now().In(b.cfg.Location)
	today := startOfDay(now)
	if !today.After(b.currentDay) {
		return
	}
	b.currentDay = today
	if startOfDayValue != nil {
		b.startOfDayValue = *startOfDayValue
	} else {
		b.startOfDayValue = current
	}
	if st := b.states[domain.BreakerDailyLoss]; st.State == domain.StateTripped {
		st.State = domain.StateArmed
		st.TrippedAt = nil
		st.Reason = ""
		st.ConfirmationCode = ""
	}
}

func (b *CircuitBreaker) pruneHistoryLocked() {
	cutoff := time.Now().Add(-b.cfg.RapidDrawdownWindow)
	kept := b.recentHistory[:0]
	for _, s := range b.recentHistory {
		if s.At.After(cutoff) {
			kept = append(kept, s)
		}
	}
	b.recentHistory = kept
}

func warnThreshold(ratio decimal.Decimal) bool {
	return ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.8)) && ratio.LessThan(decimal.NewFromInt(1))
}

func (b *CircuitBreaker) checkDailyLossLocked(current decimal.Decimal, result *CheckResult) {
	if b.startOfDayValue.IsZero() {
		return
	}
	loss := b.startOfDayValue.Sub(current).Div(b.startOfDayValue)
	ratio := loss.Div(b.cfg.DailyLossLimit)
	if loss.GreaterThanOrEqual(b.cfg.DailyLossLimit) {
		b.tripLocked(domain.BreakerDailyLoss, fmt.Sprintf("daily loss %.2f%% >= limit %.2f%%", loss.Mul(decimal.NewFromInt(100)).InexactFloat64(), b.cfg.DailyLossLimit.Mul(decimal.NewFromInt(100)).InexactFloat64()))
	} else if warnThreshold(ratio) {
		result.Warnings = append(result.Warnings, "DAILY_LOSS approaching limit")
	}
}

func (b *CircuitBreaker) checkMaxDrawdownLocked(current decimal.Decimal, result *CheckResult) {
	if b.peakValue.IsZero() {
		return
	}
	dd := b.peakValue.Sub(current).Div(b.peakValue)
	ratio := dd.Div(b.cfg.MaxDrawdownLimit)
	if dd.GreaterThanOrEqual(b.cfg.MaxDrawdownLimit) {
		b.tripLocked(domain.BreakerMaxDrawdown, fmt.Sprintf("drawdown %.2f%% >= limit %.2f%%", dd.Mul(decimal.NewFromInt(100)).InexactFloat64(), b.cfg.MaxDrawdownLimit.Mul(decimal.NewFromInt(100)).InexactFloat64()))
	} else if warnThreshold(ratio) {
		result.Warnings = append(result.Warnings, "MAX_DRAWDOWN approaching limit")
	}
}

func (b *CircuitBreaker) checkConsecutiveLossesLocked(recentTrades []TradeOutcome, result *CheckResult) {
	if recentTrades != nil {
		streak := 0
		for i := len(recentTrades) - 1; i >= 0; i-- {
			if recentTrades[i].PnL.IsNegative() {
				streak++
			} else {
				break
			}
		}
		b.consecutiveLoss = streak
	}
	if b.consecutiveLoss >= b.cfg.ConsecutiveLossLimit {
		b.tripLocked(domain.BreakerConsecutiveLosses, fmt.Sprintf("%d consecutive losses >= limit %d", b.consecutiveLoss, b.cfg.ConsecutiveLossLimit))
	} else if b.cfg.ConsecutiveLossLimit > 0 && float64(b.consecutiveLoss) >= 0.8*float64(b.cfg.ConsecutiveLossLimit) {
		result.Warnings = append(result.Warnings, "CONSECUTIVE_LOSSES approaching limit")
	}
}

func (b *CircuitBreaker) checkVolatilitySpikeLocked(vix *decimal.Decimal, result *CheckResult) {
	if vix == nil {
		return
	}
	ratio := vix.Div(b.cfg.VolatilityThreshold)
	if vix.GreaterThanOrEqual(b.cfg.VolatilityThreshold) {
		now := time.Now()
		b.volTrippedAt = &now
		b.tripLocked(domain.BreakerVolatilitySpike, fmt.Sprintf("VIX %s >= threshold %s", vix.String(), b.cfg.VolatilityThreshold.String()))
	} else if warnThreshold(ratio) {
		result.Warnings = append(result.Warnings, "VOLATILITY_SPIKE approaching threshold")
	} else if st := b.states[domain.BreakerVolatilitySpike]; st.State == domain.StateTripped && b.volTrippedAt != nil {
		if time.Since(*b.volTrippedAt) >= b.cfg.AutoResetHours {
			st.State = domain.StateArmed
			st.TrippedAt = nil
			st.Reason = ""
			st.ConfirmationCode = ""
			b.volTrippedAt = nil
		}
	}
}

func (b *CircuitBreaker) checkRapidDrawdownLocked(current decimal.Decimal, result *CheckResult) {
	if len(b.recentHistory) == 0 {
		return
	}
	peak := b.recentHistory[0].Value
	for _, s := range b.recentHistory {
		if s.Value.GreaterThan(peak) {
			peak = s.Value
		}
	}
	if peak.IsZero() {
		return
	}
	drop := peak.Sub(current).Div(peak)
	ratio := drop.Div(b.cfg.RapidDrawdownLimit)
	if drop.GreaterThanOrEqual(b.cfg.RapidDrawdownLimit) {
		b.tripLocked(domain.BreakerRapidDrawdown, fmt.Sprintf("%.1f min drop %.2f%% >= limit %.2f%%", b.cfg.RapidDrawdownWindow.Minutes(), drop.Mul(decimal.NewFromInt(100)).InexactFloat64(), b.cfg.RapidDrawdownLimit.Mul(decimal.NewFromInt(100)).InexactFloat64()))
	} else if warnThreshold(ratio) {
		result.Warnings = append(result.Warnings, "RAPID_DRAWDOWN approaching limit")
	}
}

// tripLocked trips a breaker kind and assigns a confirmation code, unless
// already tripped (tripping is idempotent and keeps the original code).
func (b *CircuitBreaker) tripLocked(kind domain.BreakerKind, reason string) {
	st := b.states[kind]
	if st.State == domain.StateTripped {
		return
	}
	now := time.Now()
	st.State = domain.StateTripped
	st.TrippedAt = &now
	st.Reason = reason
	st.ConfirmationCode = generateConfirmationCode(kind, now)
}

// generateConfirmationCode produces a 16-character confirmation code from
// secure random bytes hashed with SHA-256, per spec §4.4.
func generateConfirmationCode(kind domain.BreakerKind, at time.Time) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	h := sha256.New()
	h.Write(buf)
	h.Write([]byte(kind))
	h.Write([]byte(at.String()))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Trip manually trips a breaker (MANUAL, or forced escalation of another
// kind) and returns its confirmation code.
func (b *CircuitBreaker) Trip(kind domain.BreakerKind, reason string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(kind, reason)
	return b.states[kind].ConfirmationCode
}

// ErrWrongConfirmationCode is returned by Reset when the code does not
// match; state is left unchanged.
var ErrWrongConfirmationCode = fmt.Errorf("risk: confirmation code does not match")

// Reset clears a tripped breaker. The caller must supply the exact
// confirmation code issued at trip time; a mismatch fails loudly without
// mutating state (spec §4.4, §8 S2).
func (b *CircuitBreaker) Reset(kind domain.BreakerKind, code, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[kind]
	if !ok {
		return fmt.Errorf("risk: unknown breaker kind %v", kind)
	}
	if st.State != domain.StateTripped {
		return nil
	}
	if st.ConfirmationCode != code {
		return ErrWrongConfirmationCode
	}

	st.State = domain.StateArmed
	st.TrippedAt = nil
	st.Reason = reason
	st.ConfirmationCode = ""

	if kind == domain.BreakerConsecutiveLosses {
		b.consecutiveLoss = 0
	}
	return nil
}

// RecordTrade updates the win/loss streak tracking and appends to a
// bounded (last 100) trade history.
func (b *CircuitBreaker) RecordTrade(pnl decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tradeHistory = append(b.tradeHistory, TradeOutcome{PnL: pnl, At: time.Now()})
	if len(b.tradeHistory) > 100 {
		b.tradeHistory = b.tradeHistory[len(b.tradeHistory)-100:]
	}
	if pnl.IsNegative() {
		b.consecutiveLoss++
	} else {
		b.consecutiveLoss = 0
	}
}

// PeakPortfolioValue returns the monotonically non-decreasing peak value
// observed across all Check calls (spec invariant §8.6).
func (b *CircuitBreaker) PeakPortfolioValue() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peakValue
}

// State returns a copy of one breaker's current state.
func (b *CircuitBreaker) State(kind domain.BreakerKind) domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.states[kind]
}
