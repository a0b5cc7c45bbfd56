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

// IcebergChunks is the default number of child limit orders an iceberg
// plan splits into (spec §4.5.4).
const IcebergChunks = 10

// icebergMaxOffsetBps is the maximum random limit-price offset from the
// reference price, and icebergCapBps the hard cap beyond which the offset is clamped so
// the order never chases the market (spec §4.5.4).
const (
	icebergMaxOffsetBps = 5
	icebergCapBps       = 10
)

// Iceberg splits a parent order into IcebergChunks equal-ish limit child
// orders, each priced at the current reference price plus a small random
// offset, submitted sequentially with no scheduled waits.
type Iceberg struct {
	broker ports.BrokerAdapter
	log    *zap.Logger
	rng    *rand.Rand
	clock  func() time.Time
}

// NewIceberg constructs an Iceberg executor. rng is injectable so tests can
// make the chunk offsets deterministic.
func NewIceberg(broker ports.BrokerAdapter, log *zap.Logger, rng *rand.Rand) *Iceberg {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Iceberg{broker: broker, log: log, rng: rng, clock: time.Now}
}

// buildIcebergSlices distributes total_qty across n equal (±1) chunks, all
// scheduled "now" since iceberg submission is not time-sliced.
func buildIcebergSlices(totalQty int64, n int, now time.Time) []*Slice {
	if n <= 0 {
		n = IcebergChunks
	}
	base := totalQty / int64(n)
	remainder := totalQty % int64(n)

	slices := make([]*Slice, 0, n)
	for i := 0; i < n; i++ {
		qty := base
		if int64(i) < remainder {
			qty++
		}
		slices = append(slices, &Slice{
			ID:          uuid.NewString(),
			Quantity:    qty,
			ScheduledAt: now,
			Status:      domain.SlicePending,
		})
	}
	return slices
}

// offsetLimitPrice applies a random offset of up to icebergMaxOffsetBps to
// the reference price, capped at icebergCapBps, in the direction that
// favors a passive fill (below reference for BUY, above for SELL).
func (ic *Iceberg) offsetLimitPrice(reference decimal.Decimal, side domain.OrderSide) decimal.Decimal {
	offsetBps := ic.rng.Float64() * icebergMaxOffsetBps
	if offsetBps > icebergCapBps {
		offsetBps = icebergCapBps
	}
	fraction := decimal.NewFromFloat(offsetBps).Div(decimal.NewFromInt(10000))
	if side == domain.SideBuy {
		return reference.Mul(decimal.NewFromInt(1).Sub(fraction))
	}
	return reference.Mul(decimal.NewFromInt(1).Add(fraction))
}

// Execute submits every chunk as a LIMIT order in sequence, with no
// scheduled waits between them (spec §4.5.4).
func (ic *Iceberg) Execute(ctx context.Context, plan *domain.ExecutionPlan, referencePrice decimal.Decimal, gate GateFunc) error {
	for _, slice := range plan.Slices {
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

		limitPrice := ic.offsetLimitPrice(referencePrice, plan.Side)
		orderID, err := ic.broker.Submit(ctx, plan.Symbol, slice.Quantity, plan.Side, domain.OrderTypeLimit, limitPrice)
		if err != nil {
			slice.Status = domain.SliceFailed
			continue
		}
		slice.OrderID = orderID

		report, err := ic.broker.Status(ctx, orderID)
		if err != nil || report.Status != ports.OrderFilled {
			slice.Status = domain.SliceFailed
			continue
		}
		slice.FillPrice = report.FilledAvgPrice
		slice.FillTime = ic.clock()
		slice.Status = domain.SliceExecuted
	}

	finalizePlan(plan)
	return nil
}
