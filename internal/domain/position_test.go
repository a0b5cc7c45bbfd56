package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyBuy_OpensNewPositionAtCost(t *testing.T) {
	var p Position
	now := time.Now()
	p.ApplyBuy(10, decimal.NewFromInt(100), decimal.NewFromInt(1), now)

	assert.Equal(t, int64(10), p.Quantity)
	assert.True(t, p.AvgCost.Equal(decimal.NewFromFloat(100.1)))
	assert.Equal(t, now, p.OpenedAt)
}

func TestApplyBuy_AddsToExistingPositionWeightedAverage(t *testing.T) {
	var p Position
	now := time.Now()
	p.ApplyBuy(10, decimal.NewFromInt(100), decimal.Zero, now)
	p.ApplyBuy(10, decimal.NewFromInt(120), decimal.Zero, now)

	assert.Equal(t, int64(20), p.Quantity)
	assert.True(t, p.AvgCost.Equal(decimal.NewFromInt(110)))
}

func TestApplySell_RealizesPnLAndReducesQuantity(t *testing.T) {
	var p Position
	now := time.Now()
	p.ApplyBuy(10, decimal.NewFromInt(100), decimal.Zero, now)

	realized := p.ApplySell(10, decimal.NewFromInt(110), decimal.NewFromInt(1), now)

	assert.True(t, realized.Equal(decimal.NewFromInt(99))) // (110-100)*10 - 1
	assert.Equal(t, int64(0), p.Quantity)
	assert.True(t, p.IsFlat())
	assert.True(t, p.AvgCost.IsZero())
}

func TestApplySell_PartialCloseKeepsAvgCost(t *testing.T) {
	var p Position
	now := time.Now()
	p.ApplyBuy(10, decimal.NewFromInt(100), decimal.Zero, now)

	p.ApplySell(4, decimal.NewFromInt(110), decimal.Zero, now)

	assert.Equal(t, int64(6), p.Quantity)
	assert.True(t, p.AvgCost.Equal(decimal.NewFromInt(100)))
}

func TestMarketValue_SignedByQuantity(t *testing.T) {
	p := Position{Quantity: 10}
	assert.True(t, p.MarketValue(decimal.NewFromInt(50)).Equal(decimal.NewFromInt(500)))
}

func TestIsFlat_TrueOnlyAtZero(t *testing.T) {
	assert.True(t, Position{Quantity: 0}.IsFlat())
	assert.False(t, Position{Quantity: 1}.IsFlat())
}
