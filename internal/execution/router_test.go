package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/adapters/broker"
	"github.com/tradecore/engine/internal/adapters/marketdata"
	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/slippage"
)

func newTestRouter(t *testing.T) *ExecutionRouter {
	t.Helper()
	log := zap.NewNop()
	prices := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)}
	adv := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(1_000_000)}
	md := marketdata.New(log, marketdata.DefaultConfig(), prices, adv)
	br := broker.New(log, md)
	model := slippage.New(slippage.DefaultConfig())
	return NewExecutionRouter(DefaultRouterConfig(), br, md, model, log)
}

func TestSelectStrategy_ImmediateAlwaysMarket(t *testing.T) {
	r := newTestRouter(t)
	got := r.selectStrategy(decimal.NewFromInt(1_000_000), UrgencyImmediate, nil, 1000)
	assert.Equal(t, domain.StrategyMarket, got)
}

func TestSelectStrategy_SmallOrderIsMarket(t *testing.T) {
	r := newTestRouter(t)
	got := r.selectStrategy(decimal.NewFromInt(5000), UrgencyNormal, nil, 10)
	assert.Equal(t, domain.StrategyMarket, got)
}

func TestSelectStrategy_LowUrgencyIsLimit(t *testing.T) {
	r := newTestRouter(t)
	got := r.selectStrategy(decimal.NewFromInt(50000), UrgencyLow, nil, 100)
	assert.Equal(t, domain.StrategyLimit, got)
}

func TestSelectStrategy_LargeHighParticipationIsVWAP(t *testing.T) {
	r := newTestRouter(t)
	adv := decimal.NewFromInt(10000)
	got := r.selectStrategy(decimal.NewFromInt(200000), UrgencyNormal, &adv, 500) // 5% participation > 1%
	assert.Equal(t, domain.StrategyVWAP, got)
}

func TestSelectStrategy_LargeLowParticipationIsIceberg(t *testing.T) {
	r := newTestRouter(t)
	adv := decimal.NewFromInt(10_000_000)
	got := r.selectStrategy(decimal.NewFromInt(200000), UrgencyNormal, &adv, 500) // 0.005% participation < 1%
	assert.Equal(t, domain.StrategyIceberg, got)
}

func TestSelectStrategy_LargeUnknownADVIsIceberg(t *testing.T) {
	r := newTestRouter(t)
	got := r.selectStrategy(decimal.NewFromInt(200000), UrgencyNormal, nil, 500)
	assert.Equal(t, domain.StrategyIceberg, got)
}

func TestSelectStrategy_MidSizeIsTWAP(t *testing.T) {
	r := newTestRouter(t)
	got := r.selectStrategy(decimal.NewFromInt(50000), UrgencyNormal, nil, 100)
	assert.Equal(t, domain.StrategyTWAP, got)
}

func TestRoute_SmallOrderFillsAsMarket(t *testing.T) {
	r := newTestRouter(t)
	price := decimal.NewFromInt(100)

	result, err := r.Route(context.Background(), "AAPL", 10, domain.SideBuy, &price, UrgencyNormal, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyMarket, result.Plan.Strategy)
	assert.Equal(t, domain.PlanCompleted, result.Plan.Status)
	assert.Equal(t, int64(10), result.Plan.ExecutedQuantity())
}

func TestRoute_GateRefusalFailsThePlan(t *testing.T) {
	r := newTestRouter(t)
	price := decimal.NewFromInt(100)
	gate := func() bool { return false }

	result, err := r.Route(context.Background(), "AAPL", 10, domain.SideBuy, &price, UrgencyNormal, nil, 0, gate)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, result.Plan.Status)
}

func TestHistory_AccumulatesRoutes(t *testing.T) {
	r := newTestRouter(t)
	price := decimal.NewFromInt(100)
	_, _ = r.Route(context.Background(), "AAPL", 10, domain.SideBuy, &price, UrgencyNormal, nil, 0, nil)
	_, _ = r.Route(context.Background(), "AAPL", 10, domain.SideBuy, &price, UrgencyNormal, nil, 0, nil)
	assert.Len(t, r.History(), 2)
}
