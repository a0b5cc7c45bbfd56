package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePositionSize_NegativeEdgeRefused(t *testing.T) {
	sizer := NewKellySizer(DefaultSizingConfig())
	sizer.UpdateAccountBalance(decimal.NewFromInt(100000))

	result := sizer.CalculatePositionSize(
		decimal.NewFromFloat(0.3), decimal.NewFromInt(1), decimal.NewFromInt(1),
		decimal.NewFromFloat(0.5), nil, "AAPL")

	assert.True(t, result.DollarSize.IsZero())
	assert.Equal(t, "Negative edge", result.Rationale)
}

func TestCalculatePositionSize_CapsAtPerPositionPct(t *testing.T) {
	cfg := DefaultSizingConfig()
	cfg.MaxPositionPct = decimal.NewFromFloat(0.1)
	sizer := NewKellySizer(cfg)
	sizer.UpdateAccountBalance(decimal.NewFromInt(100000))

	result := sizer.CalculatePositionSize(
		decimal.NewFromFloat(0.7), decimal.NewFromInt(2), decimal.NewFromInt(1),
		decimal.NewFromInt(1), nil, "AAPL")

	require.True(t, result.RawKellyPct.GreaterThan(cfg.MaxPositionPct))
	assert.True(t, result.AdjustedPct.LessThanOrEqual(cfg.MaxPositionPct))
	assert.True(t, result.DollarSize.Equal(cfg.MaxPositionPct.Mul(decimal.NewFromInt(100000))))
}

func TestCalculatePositionSize_PortfolioHeatCap(t *testing.T) {
	cfg := SizingConfig{
		MaxPositionPct:   decimal.NewFromFloat(0.5),
		MaxTotalExposure: decimal.NewFromFloat(0.2),
		MinPositionSize:  decimal.Zero,
		MaxPositionSize:  decimal.NewFromInt(1000000),
	}
	sizer := NewKellySizer(cfg)
	sizer.UpdateAccountBalance(decimal.NewFromInt(100000))
	sizer.UpdatePositions(map[string]decimal.Decimal{"MSFT": decimal.NewFromInt(15000)})

	result := sizer.CalculatePositionSize(
		decimal.NewFromFloat(0.7), decimal.NewFromInt(2), decimal.NewFromInt(1),
		decimal.NewFromInt(1), nil, "AAPL")

	// existing heat is 15% of a 20% budget, leaving 5% = $5000 available for a
	// new symbol with no existing weight of its own.
	assert.True(t, result.DollarSize.LessThanOrEqual(decimal.NewFromInt(5000)))
}

func TestCalculatePositionSize_AbsoluteDollarFloorAndCeiling(t *testing.T) {
	cfg := SizingConfig{
		MaxPositionPct:   decimal.NewFromFloat(1),
		MaxTotalExposure: decimal.NewFromFloat(1),
		MinPositionSize:  decimal.NewFromInt(5000),
		MaxPositionSize:  decimal.NewFromInt(9000),
	}
	sizer := NewKellySizer(cfg)
	sizer.UpdateAccountBalance(decimal.NewFromInt(100000))

	result := sizer.CalculatePositionSize(
		decimal.NewFromFloat(0.9), decimal.NewFromInt(3), decimal.NewFromInt(1),
		decimal.NewFromInt(1), nil, "AAPL")

	assert.True(t, result.DollarSize.Equal(decimal.NewFromInt(9000)))
}

func TestCalculatePositionSize_SharesRoundedDown(t *testing.T) {
	sizer := NewKellySizer(DefaultSizingConfig())
	sizer.UpdateAccountBalance(decimal.NewFromInt(10000))

	price := decimal.NewFromFloat(33.33)
	result := sizer.CalculatePositionSize(
		decimal.NewFromFloat(0.6), decimal.NewFromInt(2), decimal.NewFromInt(1),
		decimal.NewFromInt(1), &price, "AAPL")

	assert.Equal(t, int64(75), result.Shares) // floor(2500 / 33.33) = floor(75.0075)
	expectedShares := result.DollarSize.Div(price).Floor()
	assert.True(t, decimal.NewFromInt(result.Shares).LessThanOrEqual(expectedShares.Add(decimal.NewFromInt(1))))
}

func TestCalculatePositionSize_InvalidInputs(t *testing.T) {
	sizer := NewKellySizer(DefaultSizingConfig())

	bad := []struct {
		name             string
		winRate, avgWin, avgLoss, fraction decimal.Decimal
	}{
		{"win_rate_too_high", decimal.NewFromFloat(1.5), decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"avg_win_zero", decimal.NewFromFloat(0.5), decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"avg_loss_zero", decimal.NewFromFloat(0.5), decimal.NewFromInt(1), decimal.Zero, decimal.NewFromInt(1)},
		{"fraction_negative", decimal.NewFromFloat(0.5), decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromFloat(-0.1)},
	}

	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			result := sizer.CalculatePositionSize(tc.winRate, tc.avgWin, tc.avgLoss, tc.fraction, nil, "")
			assert.True(t, result.DollarSize.IsZero())
			assert.NotEmpty(t, result.Rationale)
		})
	}
}

func TestGetPortfolioHeat(t *testing.T) {
	sizer := NewKellySizer(DefaultSizingConfig())
	sizer.UpdateAccountBalance(decimal.NewFromInt(1000))
	sizer.UpdatePositions(map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(200),
		"MSFT": decimal.NewFromInt(-100), // stored as absolute value
	})

	assert.True(t, sizer.GetPortfolioHeat().Equal(decimal.NewFromFloat(0.3)))
}
