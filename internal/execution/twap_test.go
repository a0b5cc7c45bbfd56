package execution

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/adapters/broker"
	"github.com/tradecore/engine/internal/adapters/marketdata"
	"github.com/tradecore/engine/internal/domain"
)

func newTestBroker(t *testing.T) *broker.Simulated {
	t.Helper()
	log := zap.NewNop()
	prices := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)}
	adv := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(1_000_000)}
	md := marketdata.New(log, marketdata.DefaultConfig(), prices, adv)
	return broker.New(log, md)
}

// noWait replaces a scheduler's sleep function so tests don't block on
// real scheduled-at timestamps.
func noWait(ctx context.Context, until time.Time) error { return nil }

func newInstantTWAP(br *broker.Simulated) *TWAPScheduler {
	s := NewTWAPScheduler(br, zap.NewNop(), rand.New(rand.NewSource(1)))
	s.sleep = noWait
	return s
}

func TestBuildEqualSlices_DistributesRemainderToFirstSlices(t *testing.T) {
	start := time.Now()
	slices := buildEqualSlices(103, 10, start, time.Hour, false, 0, rand.New(rand.NewSource(1)))
	require.Len(t, slices, 10)

	var total int64
	for i, s := range slices {
		total += s.Quantity
		if i < 3 {
			assert.Equal(t, int64(11), s.Quantity)
		} else {
			assert.Equal(t, int64(10), s.Quantity)
		}
	}
	assert.Equal(t, int64(103), total)
}

func TestBuildEqualSlices_StepsEvenlyAcrossWindow(t *testing.T) {
	start := time.Now()
	window := 60 * time.Minute
	slices := buildEqualSlices(100, 10, start, window, false, 0, nil)

	assert.True(t, slices[0].ScheduledAt.Equal(start))
	assert.True(t, slices[9].ScheduledAt.Equal(start.Add(54*time.Minute)))
}

func TestTWAPExecute_AllSlicesFillAndPlanCompletes(t *testing.T) {
	br := newTestBroker(t)
	s := newInstantTWAP(br)

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildEqualSlices(100, 5, time.Now(), time.Hour, false, 0, nil),
		Status:      domain.PlanRunning,
	}

	err := s.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, plan.Status)
	assert.Equal(t, int64(100), plan.ExecutedQuantity())
}

func TestTWAPExecute_CancelRequestedStopsRemainingSlices(t *testing.T) {
	br := newTestBroker(t)
	s := newInstantTWAP(br)

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildEqualSlices(100, 5, time.Now(), time.Hour, false, 0, nil),
		Status:      domain.PlanRunning,
	}
	plan.RequestCancel()

	err := s.Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCancelled, plan.Status)
	assert.Equal(t, int64(0), plan.ExecutedQuantity())
	assert.Equal(t, 5, plan.CountByStatus(domain.SliceCancelled))
}

func TestTWAPExecute_GateRefusalFailsSlices(t *testing.T) {
	br := newTestBroker(t)
	s := newInstantTWAP(br)

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildEqualSlices(100, 5, time.Now(), time.Hour, false, 0, nil),
		Status:      domain.PlanRunning,
	}

	err := s.Execute(context.Background(), plan, func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, plan.Status)
	assert.Equal(t, 5, plan.CountByStatus(domain.SliceFailed))
}

func TestCancel_RequestsCancellationOnRunningPlan(t *testing.T) {
	br := newTestBroker(t)
	plan := &domain.ExecutionPlan{Status: domain.PlanRunning}

	ok := Cancel(context.Background(), plan, br)
	assert.True(t, ok)
	assert.True(t, plan.CancelRequested())
}

func TestCancel_NonRunningPlanIsNoop(t *testing.T) {
	br := newTestBroker(t)
	plan := &domain.ExecutionPlan{Status: domain.PlanCompleted}

	ok := Cancel(context.Background(), plan, br)
	assert.False(t, ok)
}

func TestTwapWindowAndSlices_HighUrgencyIsShorterAndFewer(t *testing.T) {
	window, n := twapWindowAndSlices(UrgencyHigh)
	assert.Equal(t, 30*time.Minute, window)
	assert.Equal(t, 6, n)

	window, n = twapWindowAndSlices(UrgencyNormal)
	assert.Equal(t, 60*time.Minute, window)
	assert.Equal(t, 10, n)
}
