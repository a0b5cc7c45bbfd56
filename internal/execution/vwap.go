package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/ports"
)

// VolumeWindow is one named half-hour bucket of an intraday volume profile.
type VolumeWindow struct {
	Label    string
	Start    time.Duration // offset from the trading day's open
	Fraction decimal.Decimal
}

// DefaultVolumeProfile is the U-shaped intraday profile described in spec
// §4.5.2: heavier at the open and close, flat through the middle session.
func DefaultVolumeProfile() []VolumeWindow {
	f := func(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }
	return []VolumeWindow{
		{"09:30-10:00", 0 * time.Minute, f(0.15)},
		{"10:00-10:30", 30 * time.Minute, f(0.09)},
		{"10:30-11:00", 60 * time.Minute, f(0.07)},
		{"11:00-11:30", 90 * time.Minute, f(0.06)},
		{"11:30-12:00", 120 * time.Minute, f(0.05)},
		{"12:00-12:30", 150 * time.Minute, f(0.04)},
		{"12:30-13:00", 180 * time.Minute, f(0.04)},
		{"13:00-13:30", 210 * time.Minute, f(0.05)},
		{"13:30-14:00", 240 * time.Minute, f(0.06)},
		{"14:00-14:30", 270 * time.Minute, f(0.07)},
		{"14:30-15:00", 300 * time.Minute, f(0.08)},
		{"15:00-15:30", 330 * time.Minute, f(0.09)},
		{"15:30-16:00", 360 * time.Minute, f(0.15)},
	}
}

// VWAPScheduler slices a parent order across the intraday volume profile
// (spec §4.5.2).
type VWAPScheduler struct {
	broker  ports.BrokerAdapter
	log     *zap.Logger
	clock   func() time.Time
	sleep   func(ctx context.Context, until time.Time) error
	profile []VolumeWindow
}

// NewVWAPScheduler constructs a scheduler with the given volume profile; a
// nil profile falls back to DefaultVolumeProfile.
func NewVWAPScheduler(broker ports.BrokerAdapter, log *zap.Logger, profile []VolumeWindow) *VWAPScheduler {
	if profile == nil {
		profile = DefaultVolumeProfile()
	}
	return &VWAPScheduler{
		broker:  broker,
		log:     log,
		clock:   time.Now,
		sleep:   sleepUntil,
		profile: profile,
	}
}

// buildVolumeSlices filters the profile to windows within [start, end],
// renormalizes, and allocates quantity per window with the residual going
// to the last slice (spec §4.5.2 steps 1-4).
func buildVolumeSlices(totalQty int64, start, end time.Time, profile []VolumeWindow) []*Slice {
	day := dayOpen(start)

	var filtered []VolumeWindow
	for _, w := range profile {
		windowStart := day.Add(w.Start)
		if !windowStart.Before(start) && !windowStart.After(end) {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) == 0 {
		filtered = []VolumeWindow{{Label: "single", Start: 0, Fraction: decimal.NewFromInt(1)}}
	}

	sum := decimal.Zero
	for _, w := range filtered {
		sum = sum.Add(w.Fraction)
	}

	slices := make([]*Slice, 0, len(filtered))
	var allocated int64
	for i, w := range filtered {
		fraction := w.Fraction
		if sum.IsPositive() {
			fraction = fraction.Div(sum)
		}
		qty := fraction.Mul(decimal.NewFromInt(totalQty)).Round(0).IntPart()
		if i == len(filtered)-1 {
			qty = totalQty - allocated
		}
		allocated += qty

		scheduledAt := start
		if i > 0 {
			scheduledAt = day.Add(w.Start)
		}
		slices = append(slices, &Slice{
			ID:                uuid.NewString(),
			Quantity:          qty,
			ScheduledAt:       scheduledAt,
			Status:            domain.SlicePending,
			ExpectedVolumePct: fraction,
		})
	}
	return slices
}

// dayOpen returns the regular-session open (09:30) for t's calendar day in
// t's location.
func dayOpen(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 9, 30, 0, 0, t.Location())
}

// Execute runs a VWAP plan to completion using the same per-slice
// submission loop as TWAP (spec §4.5.2 step 5).
func (s *VWAPScheduler) Execute(ctx context.Context, plan *domain.ExecutionPlan, gate GateFunc) VWAPResult {
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
		if slice.Quantity <= 0 {
			slice.Status = domain.SliceExecuted
			continue
		}

		orderID, err := s.broker.Submit(ctx, plan.Symbol, slice.Quantity, plan.Side, domain.OrderTypeMarket, decimal.Zero)
		if err != nil {
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
	return computeVWAPResult(plan)
}

// VWAPResult reports the realized VWAP benchmark and the average-fill
// deviation from it (spec §4.5.2).
type VWAPResult struct {
	RealizedVWAP decimal.Decimal
	AvgPrice     decimal.Decimal
	DeviationPct decimal.Decimal
}

// DeviationThresholdDefault is the default alert threshold on |deviation| (0.5%).
const DeviationThresholdDefault = 0.005

func computeVWAPResult(plan *domain.ExecutionPlan) VWAPResult {
	var totalQty, fills int64
	totalValue := decimal.Zero
	priceSum := decimal.Zero
	for _, s := range plan.Slices {
		if s.Status != domain.SliceExecuted || s.Quantity == 0 {
			continue
		}
		totalQty += s.Quantity
		totalValue = totalValue.Add(s.FillPrice.Mul(decimal.NewFromInt(s.Quantity)))
		priceSum = priceSum.Add(s.FillPrice)
		fills++
	}
	if totalQty == 0 {
		return VWAPResult{}
	}
	vwap := totalValue.Div(decimal.NewFromInt(totalQty))
	avg := priceSum.Div(decimal.NewFromInt(fills)) // equal-weight mean of fill prices

	deviation := decimal.Zero
	if vwap.IsPositive() {
		deviation = avg.Sub(vwap).Div(vwap)
	}
	return VWAPResult{RealizedVWAP: vwap, AvgPrice: avg, DeviationPct: deviation}
}
