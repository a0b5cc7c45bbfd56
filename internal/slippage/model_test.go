package slippage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradecore/engine/internal/domain"
)

func TestEstimate_SpreadOnly_NoVolNoADV(t *testing.T) {
	m := New(DefaultConfig())
	est := m.Estimate("AAPL", 100, domain.SideBuy, decimal.NewFromInt(100), decimal.Zero, nil, domain.OrderTypeLimit, decimal.NewFromInt(1))

	assert.True(t, est.SpreadBps.Equal(DefaultConfig().BaseSpreadBps))
	assert.True(t, est.ImpactBps.IsZero())
	assert.True(t, est.UrgencyBps.IsZero())
	assert.True(t, est.EstimatedFill.GreaterThan(decimal.NewFromInt(100)))
}

func TestEstimate_SellFillIsBelowReference(t *testing.T) {
	m := New(DefaultConfig())
	est := m.Estimate("AAPL", 100, domain.SideSell, decimal.NewFromInt(100), decimal.Zero, nil, domain.OrderTypeLimit, decimal.NewFromInt(1))
	assert.True(t, est.EstimatedFill.LessThan(decimal.NewFromInt(100)))
}

func TestEstimate_ImpactCappedAtMax(t *testing.T) {
	cfg := Config{BaseSpreadBps: decimal.Zero, ImpactCoef: decimal.NewFromInt(1000), MaxImpactBps: decimal.NewFromInt(50)}
	m := New(cfg)
	est := m.Estimate("AAPL", 500_000, domain.SideBuy, decimal.NewFromInt(10), decimal.NewFromInt(1_000_000), nil, domain.OrderTypeLimit, decimal.NewFromInt(1))
	assert.True(t, est.ImpactBps.Equal(decimal.NewFromInt(50)))
}

func TestEstimate_UrgencyOnlyAppliesToMarketOrders(t *testing.T) {
	m := New(DefaultConfig())
	limitEst := m.Estimate("AAPL", 100, domain.SideBuy, decimal.NewFromInt(100), decimal.Zero, nil, domain.OrderTypeLimit, decimal.NewFromFloat(1.5))
	marketEst := m.Estimate("AAPL", 100, domain.SideBuy, decimal.NewFromInt(100), decimal.Zero, nil, domain.OrderTypeMarket, decimal.NewFromFloat(1.5))

	assert.True(t, limitEst.UrgencyBps.IsZero())
	assert.True(t, marketEst.UrgencyBps.GreaterThan(decimal.Zero))
}

func TestRecordActual_BpsSignConventions(t *testing.T) {
	m := New(DefaultConfig())

	buyRec := m.RecordActual("AAPL", 100, domain.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(101), domain.OrderTypeMarket)
	assert.True(t, buyRec.Bps.GreaterThan(decimal.Zero)) // paid more than expected on a buy

	sellRec := m.RecordActual("AAPL", 100, domain.SideSell, decimal.NewFromInt(100), decimal.NewFromInt(99), domain.OrderTypeMarket)
	assert.True(t, sellRec.Bps.GreaterThan(decimal.Zero)) // received less than expected on a sell
}

func TestReport_AggregatesAndFiltersBySymbol(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordActual("AAPL", 100, domain.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(101), domain.OrderTypeMarket)
	m.RecordActual("AAPL", 100, domain.SideSell, decimal.NewFromInt(100), decimal.NewFromInt(98), domain.OrderTypeMarket)
	m.RecordActual("MSFT", 50, domain.SideBuy, decimal.NewFromInt(200), decimal.NewFromInt(200), domain.OrderTypeLimit)

	aapl := m.Report("AAPL")
	assert.Equal(t, 2, aapl.Count)
	assert.Equal(t, 1, aapl.BuyCount)
	assert.Equal(t, 1, aapl.SellCount)

	all := m.Report("")
	assert.Equal(t, 3, all.Count)
}

func TestReport_EmptyHistory(t *testing.T) {
	m := New(DefaultConfig())
	stats := m.Report("AAPL")
	assert.Equal(t, 0, stats.Count)
}

func TestQuality_Bands(t *testing.T) {
	cases := []struct {
		actual, expected decimal.Decimal
		want             QualityGrade
	}{
		{decimal.NewFromInt(85), decimal.NewFromInt(100), QualityExcellent},
		{decimal.NewFromInt(100), decimal.NewFromInt(100), QualityGood},
		{decimal.NewFromInt(120), decimal.NewFromInt(100), QualityFair},
		{decimal.NewFromInt(140), decimal.NewFromInt(100), QualityPoor},
		{decimal.NewFromInt(10), decimal.Zero, QualityPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Quality(tc.actual, tc.expected))
	}
}
