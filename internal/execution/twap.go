// Package execution implements the slice schedulers (TWAP, VWAP, Iceberg)
// and the strategy-selecting router that sits above them (spec §4.5-§4.6).
package execution

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/ports"
)

// GateFunc reports whether new slice submissions may proceed; the execution
// loop consults it before every slice, honoring CircuitBreaker trips without
// this package depending on the risk package directly.
type GateFunc func() bool

// TWAPScheduler slices a parent order into equal-sized children spaced
// evenly across a time window (spec §4.5.1).
type TWAPScheduler struct {
	broker ports.BrokerAdapter
	log    *zap.Logger
	rng    *rand.Rand
	clock  func() time.Time
	sleep  func(ctx context.Context, until time.Time) error
}

// NewTWAPScheduler constructs a scheduler against the given broker.
func NewTWAPScheduler(broker ports.BrokerAdapter, log *zap.Logger, rng *rand.Rand) *TWAPScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &TWAPScheduler{
		broker: broker,
		log:    log,
		rng:    rng,
		clock:  time.Now,
		sleep:  sleepUntil,
	}
}

func sleepUntil(ctx context.Context, until time.Time) error {
	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// buildEqualSlices distributes total_qty into n slices of equal (±1) size,
// remainder going to the first total_qty mod n slices (spec §4.5.1).
func buildEqualSlices(totalQty int64, n int, start time.Time, window time.Duration, randomize bool, jitterSeconds int, rng *rand.Rand) []*Slice {
	if n <= 0 {
		n = 1
	}
	base := totalQty / int64(n)
	remainder := totalQty % int64(n)

	slices := make([]*Slice, 0, n)
	step := window / time.Duration(n)
	for i := 0; i < n; i++ {
		qty := base
		if int64(i) < remainder {
			qty++
		}
		scheduledAt := start.Add(time.Duration(i) * step)
		if randomize && i > 0 {
			jitter := time.Duration(rng.Intn(2*jitterSeconds+1)-jitterSeconds) * time.Second
			scheduledAt = scheduledAt.Add(jitter)
		}
		slices = append(slices, &Slice{
			ID:          uuid.NewString(),
			Quantity:    qty,
			ScheduledAt: scheduledAt,
			Status:      domain.SlicePending,
		})
	}
	return slices
}

// Slice is a local alias kept for readability at call sites; it is the same
// type as domain.Slice.
type Slice = domain.Slice

// Execute runs a TWAP plan to completion, submitting one MARKET child order
// per slice in strict scheduled-at order (spec §4.5.1, §5).
func (s *TWAPScheduler) Execute(ctx context.Context, plan *domain.ExecutionPlan, gate GateFunc) error {
	for _, slice := range plan.Slices {
		if plan.CancelRequested() {
			slice.Status = domain.SliceCancelled
			continue
		}
		if err := s.sleep(ctx, slice.ScheduledAt); err != nil {
			slice.Status = domain.SliceCancelled
			continue
		}
		if plan.CancelRequested() {
			slice.Status = domain.SliceCancelled
			continue
		}
		if gate != nil && !gate() {
			slice.Status = domain.SliceFailed
			continue
		}

		orderID, err := s.broker.Submit(ctx, plan.Symbol, slice.Quantity, plan.Side, domain.OrderTypeMarket, decimal.Zero)
		if err != nil {
			s.log.Warn("twap: slice submit failed", zap.String("execution_id", plan.ExecutionID), zap.Error(err))
			slice.Status = domain.SliceFailed
			continue
		}
		slice.OrderID = orderID

		report, err := s.broker.Status(ctx, orderID)
		if err != nil || report.Status != ports.OrderFilled {
			slice.Status = domain.SliceFailed
			continue
		}
		slice.FillPrice = report.FilledAvgPrice
		slice.FillTime = s.clock()
		slice.Status = domain.SliceExecuted
	}

	finalizePlan(plan)
	return nil
}

// finalizePlan sets the plan's terminal status from its slice outcomes once
// the execution loop has processed every slice.
func finalizePlan(plan *domain.ExecutionPlan) {
	now := time.Now()
	if plan.CancelRequested() {
		plan.Status = domain.PlanCancelled
		plan.End = &now
		return
	}
	failed := plan.CountByStatus(domain.SliceFailed)
	executed := plan.CountByStatus(domain.SliceExecuted)
	switch {
	case executed == 0 && failed > 0:
		plan.Status = domain.PlanFailed
	default:
		plan.Status = domain.PlanCompleted
	}
	plan.End = &now
}

// Cancel flips a plan's cancellation flag and, for any slice already
// in-flight with a live broker order, asks the broker to cancel it
// (spec §4.5.3).
func Cancel(ctx context.Context, plan *domain.ExecutionPlan, broker ports.BrokerAdapter) bool {
	if plan.Status != domain.PlanRunning {
		return false
	}
	plan.RequestCancel()
	for _, slice := range plan.Slices {
		if slice.Status == domain.SlicePending && slice.OrderID != "" {
			_, _ = broker.Cancel(ctx, slice.OrderID)
		}
	}
	return true
}

// twapWindowAndSlices maps an urgency parameter to a (window, n_slices)
// pair per spec §4.6's "Urgency parameter map for TWAP".
func twapWindowAndSlices(urgency Urgency) (time.Duration, int) {
	switch urgency {
	case UrgencyHigh:
		return 30 * time.Minute, 6
	default:
		return 60 * time.Minute, 10
	}
}
