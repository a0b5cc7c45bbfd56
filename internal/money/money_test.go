package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBps_ConvertsFractionToBasisPoints(t *testing.T) {
	got := Bps(decimal.NewFromFloat(0.0005))
	assert.True(t, got.Equal(decimal.NewFromInt(5)))
}

func TestFromBps_ConvertsBasisPointsToFraction(t *testing.T) {
	got := FromBps(decimal.NewFromInt(5))
	assert.True(t, got.Equal(decimal.NewFromFloat(0.0005)))
}

func TestRoundShares_FloorsFractionalShares(t *testing.T) {
	assert.Equal(t, int64(12), RoundShares(decimal.NewFromFloat(12.99)))
	assert.Equal(t, int64(0), RoundShares(decimal.NewFromFloat(0.5)))
}

func TestClamp_BoundsToInterval(t *testing.T) {
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(100)
	assert.True(t, Clamp(decimal.NewFromInt(5), lo, hi).Equal(lo))
	assert.True(t, Clamp(decimal.NewFromInt(200), lo, hi).Equal(hi))
	assert.True(t, Clamp(decimal.NewFromInt(50), lo, hi).Equal(decimal.NewFromInt(50)))
}

func TestSqrt_NonNegativeInput(t *testing.T) {
	got := Sqrt(decimal.NewFromInt(9))
	assert.True(t, got.Equal(decimal.NewFromInt(3)))
}

func TestSqrt_NegativeInputReturnsZero(t *testing.T) {
	got := Sqrt(decimal.NewFromInt(-4))
	assert.True(t, got.IsZero())
}
