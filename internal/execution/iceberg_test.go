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

	"github.com/tradecore/engine/internal/domain"
)

func TestBuildIcebergSlices_DistributesRemainderToFirstChunks(t *testing.T) {
	now := time.Now()
	slices := buildIcebergSlices(103, 10, now)
	require.Len(t, slices, 10)

	var total int64
	for i, s := range slices {
		total += s.Quantity
		assert.True(t, s.ScheduledAt.Equal(now))
		if i < 3 {
			assert.Equal(t, int64(11), s.Quantity)
		} else {
			assert.Equal(t, int64(10), s.Quantity)
		}
	}
	assert.Equal(t, int64(103), total)
}

func TestBuildIcebergSlices_DefaultsChunkCountWhenNonPositive(t *testing.T) {
	slices := buildIcebergSlices(100, 0, time.Now())
	assert.Len(t, slices, IcebergChunks)
}

func TestOffsetLimitPrice_BuyIsBelowReference(t *testing.T) {
	ic := NewIceberg(nil, zap.NewNop(), rand.New(rand.NewSource(1)))
	ref := decimal.NewFromInt(100)
	price := ic.offsetLimitPrice(ref, domain.SideBuy)
	assert.True(t, price.LessThanOrEqual(ref))
}

func TestOffsetLimitPrice_SellIsAboveReference(t *testing.T) {
	ic := NewIceberg(nil, zap.NewNop(), rand.New(rand.NewSource(1)))
	ref := decimal.NewFromInt(100)
	price := ic.offsetLimitPrice(ref, domain.SideSell)
	assert.True(t, price.GreaterThanOrEqual(ref))
}

func TestIcebergExecute_AllChunksFillAndPlanCompletes(t *testing.T) {
	br := newTestBroker(t)
	ic := NewIceberg(br, zap.NewNop(), rand.New(rand.NewSource(1)))

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildIcebergSlices(1000, IcebergChunks, time.Now()),
		Status:      domain.PlanRunning,
	}

	err := ic.Execute(context.Background(), plan, decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, plan.Status)
	assert.Equal(t, int64(1000), plan.ExecutedQuantity())
}

func TestIcebergExecute_CancelStopsRemainingChunks(t *testing.T) {
	br := newTestBroker(t)
	ic := NewIceberg(br, zap.NewNop(), rand.New(rand.NewSource(1)))

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildIcebergSlices(1000, IcebergChunks, time.Now()),
		Status:      domain.PlanRunning,
	}
	plan.RequestCancel()

	err := ic.Execute(context.Background(), plan, decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCancelled, plan.Status)
	assert.Equal(t, IcebergChunks, plan.CountByStatus(domain.SliceCancelled))
}

func TestIcebergExecute_GateRefusalFailsChunks(t *testing.T) {
	br := newTestBroker(t)
	ic := NewIceberg(br, zap.NewNop(), rand.New(rand.NewSource(1)))

	plan := &domain.ExecutionPlan{
		ExecutionID: "e1",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Slices:      buildIcebergSlices(1000, IcebergChunks, time.Now()),
		Status:      domain.PlanRunning,
	}

	err := ic.Execute(context.Background(), plan, decimal.NewFromInt(100), func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFailed, plan.Status)
	assert.Equal(t, IcebergChunks, plan.CountByStatus(domain.SliceFailed))
}
