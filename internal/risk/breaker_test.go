package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/engine/internal/domain"
)

func newTestBreaker(initial decimal.Decimal) *CircuitBreaker {
	cfg := DefaultBreakerConfig()
	return NewCircuitBreaker(cfg, initial)
}

func TestCheck_AllowsWithinLimits(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	result := b.Check(decimal.NewFromInt(99000), nil, nil, nil)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Tripped)
}

func TestCheck_NegativeValueIsFailSafeHalt(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	result := b.Check(decimal.NewFromInt(-1), nil, nil, nil)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, "FAIL-SAFE halt")
}

func TestCheck_DailyLossTrips(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	result := b.Check(decimal.NewFromInt(96000), nil, nil, nil) // 4% loss >= 3% limit
	assert.False(t, result.Allowed)
	assert.Equal(t, domain.StateTripped, b.State(domain.BreakerDailyLoss).State)
}

func TestCheck_DailyLossWarningBand(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	// 2.5% loss is 83% of the 3% limit, inside the 80-90% warning band.
	result := b.Check(decimal.NewFromInt(97500), nil, nil, nil)
	assert.True(t, result.Allowed)
	assert.Contains(t, result.Warnings, "DAILY_LOSS approaching limit")
}

func TestCheck_MaxDrawdownTracksPeak(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	b.Check(decimal.NewFromInt(120000), nil, nil, nil)
	assert.True(t, b.PeakPortfolioValue().Equal(decimal.NewFromInt(120000)))

	result := b.Check(decimal.NewFromInt(95000), nil, nil, nil) // 20.8% off peak
	assert.False(t, result.Allowed)
	assert.Equal(t, domain.StateTripped, b.State(domain.BreakerMaxDrawdown).State)
}

func TestCheck_ConsecutiveLosses(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	losses := []TradeOutcome{
		{PnL: decimal.NewFromInt(-1)}, {PnL: decimal.NewFromInt(-1)},
		{PnL: decimal.NewFromInt(-1)}, {PnL: decimal.NewFromInt(-1)},
		{PnL: decimal.NewFromInt(-1)},
	}
	result := b.Check(decimal.NewFromInt(100000), nil, losses, nil)
	assert.False(t, result.Allowed)
	assert.Equal(t, domain.StateTripped, b.State(domain.BreakerConsecutiveLosses).State)
}

func TestCheck_VolatilitySpike(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	vix := decimal.NewFromInt(45)
	result := b.Check(decimal.NewFromInt(100000), nil, nil, &vix)
	assert.False(t, result.Allowed)
	assert.Equal(t, domain.StateTripped, b.State(domain.BreakerVolatilitySpike).State)
}

func TestTripAndReset_RequiresExactConfirmationCode(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	code := b.Trip(domain.BreakerManual, "operator halt for maintenance")

	result := b.Check(decimal.NewFromInt(100000), nil, nil, nil)
	assert.False(t, result.Allowed)

	err := b.Reset(domain.BreakerManual, "wrong-code", "resume")
	assert.ErrorIs(t, err, ErrWrongConfirmationCode)
	assert.Equal(t, domain.StateTripped, b.State(domain.BreakerManual).State)

	err = b.Reset(domain.BreakerManual, code, "resume")
	require.NoError(t, err)
	assert.Equal(t, domain.StateArmed, b.State(domain.BreakerManual).State)
}

func TestReset_UnknownKind(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	err := b.Reset(domain.BreakerKind("NOT_A_KIND"), "x", "x")
	assert.Error(t, err)
}

func TestReset_NotTrippedIsNoop(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	err := b.Reset(domain.BreakerManual, "anything", "x")
	assert.NoError(t, err)
}

func TestRecordTrade_TracksStreak(t *testing.T) {
	b := newTestBreaker(decimal.NewFromInt(100000))
	b.RecordTrade(decimal.NewFromInt(-10))
	b.RecordTrade(decimal.NewFromInt(-10))
	b.RecordTrade(decimal.NewFromInt(5))

	result := b.Check(decimal.NewFromInt(100000), nil, nil, nil)
	assert.True(t, result.Allowed)
	assert.Equal(t, domain.StateArmed, b.State(domain.BreakerConsecutiveLosses).State)
}

func TestNewCircuitBreaker_DefaultsLocationToUTC(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.Location = nil
	b := NewCircuitBreaker(cfg, decimal.NewFromInt(1000))
	assert.NotNil(t, b)
	assert.Equal(t, time.UTC, b.cfg.Location)
}

func TestStartOfDay(t *testing.T) {
	now := time.Date(2026, 7, 30, 14, 32, 0, 0, time.UTC)
	got := startOfDay(now)
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, now.Day(), got.Day())
}
