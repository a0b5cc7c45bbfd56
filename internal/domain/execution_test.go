package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExecutionPlan_ExecutedQuantityOnlyCountsExecutedSlices(t *testing.T) {
	p := &ExecutionPlan{Slices: []*Slice{
		{Quantity: 10, Status: SliceExecuted},
		{Quantity: 5, Status: SliceFailed},
		{Quantity: 7, Status: SliceExecuted},
	}}
	assert.Equal(t, int64(17), p.ExecutedQuantity())
}

func TestExecutionPlan_AveragePriceIsQuantityWeighted(t *testing.T) {
	p := &ExecutionPlan{Slices: []*Slice{
		{Quantity: 10, Status: SliceExecuted, FillPrice: decimal.NewFromInt(100)},
		{Quantity: 10, Status: SliceExecuted, FillPrice: decimal.NewFromInt(110)},
	}}
	assert.True(t, p.AveragePrice().Equal(decimal.NewFromInt(105)))
}

func TestExecutionPlan_AveragePriceZeroWithNoExecutedSlices(t *testing.T) {
	p := &ExecutionPlan{Slices: []*Slice{{Quantity: 10, Status: SlicePending}}}
	assert.True(t, p.AveragePrice().IsZero())
}

func TestExecutionPlan_CountByStatus(t *testing.T) {
	p := &ExecutionPlan{Slices: []*Slice{
		{Status: SliceExecuted}, {Status: SliceExecuted}, {Status: SliceFailed},
	}}
	assert.Equal(t, 2, p.CountByStatus(SliceExecuted))
	assert.Equal(t, 1, p.CountByStatus(SliceFailed))
	assert.Equal(t, 0, p.CountByStatus(SliceCancelled))
}

func TestExecutionPlan_RequestCancelIsObservable(t *testing.T) {
	p := &ExecutionPlan{}
	assert.False(t, p.CancelRequested())
	p.RequestCancel()
	assert.True(t, p.CancelRequested())
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "VWAP", StrategyVWAP.String())
	assert.Equal(t, "UNKNOWN", Strategy(99).String())
}

func TestPlanStatus_String(t *testing.T) {
	assert.Equal(t, "RUNNING", PlanRunning.String())
	assert.Equal(t, "UNKNOWN", PlanStatus(99).String())
}
