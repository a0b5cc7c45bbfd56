package domain

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Strategy is the execution style chosen by the router for an intent.
type Strategy int

const (
	StrategyMarket Strategy = iota + 1
	StrategyTWAP
	StrategyVWAP
	StrategyLimit
	StrategyIceberg
)

func (s Strategy) String() string {
	switch s {
	case StrategyMarket:
		return "MARKET"
	case StrategyTWAP:
		return "TWAP"
	case StrategyVWAP:
		return "VWAP"
	case StrategyLimit:
		return "LIMIT"
	case StrategyIceberg:
		return "ICEBERG"
	default:
		return "UNKNOWN"
	}
}

// PlanStatus is the lifecycle state of an ExecutionPlan.
type PlanStatus int

const (
	PlanRunning PlanStatus = iota + 1
	PlanCompleted
	PlanCancelled
	PlanFailed
)

func (s PlanStatus) String() string {
	switch s {
	case PlanRunning:
		return "RUNNING"
	case PlanCompleted:
		return "COMPLETED"
	case PlanCancelled:
		return "CANCELLED"
	case PlanFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SliceStatus is the lifecycle state of a single child Slice.
type SliceStatus int

const (
	SlicePending SliceStatus = iota + 1
	SliceExecuted
	SliceCancelled
	SliceFailed
)

func (s SliceStatus) String() string {
	switch s {
	case SlicePending:
		return "PENDING"
	case SliceExecuted:
		return "EXECUTED"
	case SliceCancelled:
		return "CANCELLED"
	case SliceFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Slice is one child order produced by a scheduler's slicing algorithm.
type Slice struct {
	ID                string
	Quantity          int64
	ScheduledAt       time.Time
	Status            SliceStatus
	OrderID           string
	FillPrice         decimal.Decimal
	FillTime          time.Time
	ExpectedVolumePct decimal.Decimal // VWAP only
}

// ExecutionPlan owns the ordered slices produced for one trade intent.
// Invariant: sum of slice quantities equals TotalQuantity at creation time.
type ExecutionPlan struct {
	ExecutionID    string
	Symbol         string
	Side           OrderSide
	TotalQuantity  int64
	Strategy       Strategy
	Slices         []*Slice
	Status         PlanStatus
	Start          time.Time
	End            *time.Time
	cancelRequested atomic.Bool
}

// RequestCancel flips the plan's cancellation flag. The running execution
// loop observes this between slice waits and before each slice submission;
// an in-flight slice submission is allowed to complete so the ledger is
// never left inconsistent (spec §5).
func (p *ExecutionPlan) RequestCancel() {
	p.cancelRequested.Store(true)
}

// CancelRequested reports whether cancellation has been requested for this
// plan. Safe to call repeatedly from the execution loop.
func (p *ExecutionPlan) CancelRequested() bool {
	return p.cancelRequested.Load()
}

// ExecutedQuantity sums the quantity of all EXECUTED slices.
func (p *ExecutionPlan) ExecutedQuantity() int64 {
	var total int64
	for _, s := range p.Slices {
		if s.Status == SliceExecuted {
			total += s.Quantity
		}
	}
	return total
}

// AveragePrice computes the quantity-weighted average fill price across
// EXECUTED slices. Returns zero if nothing has executed yet.
func (p *ExecutionPlan) AveragePrice() decimal.Decimal {
	var totalQty int64
	totalValue := decimal.Zero
	for _, s := range p.Slices {
		if s.Status == SliceExecuted {
			totalQty += s.Quantity
			totalValue = totalValue.Add(s.FillPrice.Mul(decimal.NewFromInt(s.Quantity)))
		}
	}
	if totalQty == 0 {
		return decimal.Zero
	}
	return totalValue.Div(decimal.NewFromInt(totalQty))
}

// CountByStatus tallies slices in the given status.
func (p *ExecutionPlan) CountByStatus(status SliceStatus) int {
	n := 0
	for _, s := range p.Slices {
		if s.Status == status {
			n++
		}
	}
	return n
}
