package execution

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/ports"
	"github.com/tradecore/engine/internal/slippage"
)

// Urgency is the caller-supplied dispatch hint the router's strategy
// selection tree consults first (spec §4.6).
type Urgency int

const (
	UrgencyImmediate Urgency = iota + 1
	UrgencyHigh
	UrgencyNormal
	UrgencyLow
)

// RouterConfig holds the strategy boundary thresholds (spec §4.6).
type RouterConfig struct {
	SmallOrderThreshold decimal.Decimal // default $10k
	LargeOrderThreshold decimal.Decimal // default $100k
	FallbackPrice       decimal.Decimal // reference price when none is supplied and no quote is available
	VWAPParticipation   decimal.Decimal // participation rate threshold, default 0.01 (1%)
}

// DefaultRouterConfig matches spec §4.6's stated defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SmallOrderThreshold: decimal.NewFromInt(10000),
		LargeOrderThreshold: decimal.NewFromInt(100000),
		FallbackPrice:       decimal.NewFromInt(100),
		VWAPParticipation:   decimal.NewFromFloat(0.01),
	}
}

// RouteResult is the outcome handed back to the caller after a plan has
// finished executing.
type RouteResult struct {
	Plan           *domain.ExecutionPlan
	PreTradeBps    decimal.Decimal
	PostTradeBps   decimal.Decimal
	VWAP           VWAPResult
}

// ExecutionRouter picks a strategy per the spec §4.6 decision tree,
// orchestrates the corresponding scheduler, and records pre/post-trade
// slippage.
type ExecutionRouter struct {
	cfg     RouterConfig
	broker  ports.BrokerAdapter
	market  ports.MarketDataSource
	slippageModel *slippage.Model
	log     *zap.Logger
	rng     *rand.Rand

	mu      sync.Mutex
	history []RouteResult
	plans   map[string]*domain.ExecutionPlan
}

// NewExecutionRouter constructs a router wired to the broker and
// market-data adapters and a shared slippage model.
func NewExecutionRouter(cfg RouterConfig, broker ports.BrokerAdapter, market ports.MarketDataSource, slippageModel *slippage.Model, log *zap.Logger) *ExecutionRouter {
	return &ExecutionRouter{
		cfg:           cfg,
		broker:        broker,
		market:        market,
		slippageModel: slippageModel,
		log:           log,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano() ^ 0x5bd1e995)),
		plans:         make(map[string]*domain.ExecutionPlan),
	}
}

// selectStrategy runs the first-match-wins decision tree from spec §4.6.
func (r *ExecutionRouter) selectStrategy(orderValue decimal.Decimal, urgency Urgency, adv *decimal.Decimal, qty int64) domain.Strategy {
	if urgency == UrgencyImmediate {
		return domain.StrategyMarket
	}
	if orderValue.LessThan(r.cfg.SmallOrderThreshold) {
		return domain.StrategyMarket
	}
	if urgency == UrgencyLow {
		return domain.StrategyLimit
	}
	if orderValue.GreaterThanOrEqual(r.cfg.LargeOrderThreshold) {
		if adv != nil && adv.IsPositive() {
			participation := decimal.NewFromInt(qty).Div(*adv)
			if participation.GreaterThan(r.cfg.VWAPParticipation) {
				return domain.StrategyVWAP
			}
		}
		return domain.StrategyIceberg
	}
	return domain.StrategyTWAP
}

// Route selects a strategy, executes the corresponding scheduler, records
// slippage, and returns the completed plan (spec §4.6).
func (r *ExecutionRouter) Route(ctx context.Context, symbol string, qty int64, side domain.OrderSide, price *decimal.Decimal, urgency Urgency, adv *decimal.Decimal, windowMinutes int, gate GateFunc) (RouteResult, error) {
	refPrice := r.cfg.FallbackPrice
	if price != nil && price.IsPositive() {
		refPrice = *price
	} else if r.market != nil {
		if q, err := r.market.LatestQuote(ctx, symbol); err == nil && q != nil {
			refPrice = q.Mid()
		}
	}

	orderValue := refPrice.Mul(decimal.NewFromInt(qty))
	strategy := r.selectStrategy(orderValue, urgency, adv, qty)

	now := time.Now()
	plan := &domain.ExecutionPlan{
		ExecutionID:   uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		TotalQuantity: qty,
		Strategy:      strategy,
		Status:        domain.PlanRunning,
		Start:         now,
	}

	var advValue decimal.Decimal
	if adv != nil {
		advValue = *adv
	}
	var vol *decimal.Decimal
	pre := r.slippageModel.Estimate(symbol, qty, side, refPrice, advValue, vol, orderTypeFor(strategy), urgencyMultiplier(urgency))

	var vwapResult VWAPResult

	switch strategy {
	case domain.StrategyMarket:
		plan.Slices = []*Slice{{ID: uuid.NewString(), Quantity: qty, ScheduledAt: now, Status: domain.SlicePending}}
		r.executeMarket(ctx, plan, gate)

	case domain.StrategyLimit:
		plan.Slices = []*Slice{{ID: uuid.NewString(), Quantity: qty, ScheduledAt: now, Status: domain.SlicePending}}
		r.executeLimit(ctx, plan, refPrice, gate)

	case domain.StrategyTWAP:
		window, n := twapWindowAndSlices(urgency)
		if windowMinutes > 0 {
			window = time.Duration(windowMinutes) * time.Minute
		}
		plan.Slices = buildEqualSlices(qty, n, now, window, true, 30, r.rng)
		sched := NewTWAPScheduler(r.broker, r.log, r.rng)
		_ = sched.Execute(ctx, plan, gate)

	case domain.StrategyVWAP:
		window := 390 * time.Minute
		if windowMinutes > 0 {
			window = time.Duration(windowMinutes) * time.Minute
		}
		plan.Slices = buildVolumeSlices(qty, now, now.Add(window), DefaultVolumeProfile())
		sched := NewVWAPScheduler(r.broker, r.log, DefaultVolumeProfile())
		vwapResult = sched.Execute(ctx, plan, gate)

	case domain.StrategyIceberg:
		plan.Slices = buildIcebergSlices(qty, IcebergChunks, now)
		ic := NewIceberg(r.broker, r.log, r.rng)
		_ = ic.Execute(ctx, plan, refPrice, gate)
	}

	actualAvg := plan.AveragePrice()
	var post decimal.Decimal
	if actualAvg.IsPositive() {
		rec := r.slippageModel.RecordActual(symbol, plan.ExecutedQuantity(), side, refPrice, actualAvg, orderTypeFor(strategy))
		post = rec.Bps
	}

	result := RouteResult{Plan: plan, PreTradeBps: pre.TotalBps, PostTradeBps: post, VWAP: vwapResult}

	r.mu.Lock()
	r.plans[plan.ExecutionID] = plan
	r.history = append(r.history, result)
	r.mu.Unlock()

	return result, nil
}

func (r *ExecutionRouter) executeMarket(ctx context.Context, plan *domain.ExecutionPlan, gate GateFunc) {
	slice := plan.Slices[0]
	if gate != nil && !gate() {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	orderID, err := r.broker.Submit(ctx, plan.Symbol, slice.Quantity, plan.Side, domain.OrderTypeMarket, decimal.Zero)
	if err != nil {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	slice.OrderID = orderID
	report, err := r.broker.Status(ctx, orderID)
	if err != nil || report.Status != ports.OrderFilled {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	slice.FillPrice = report.FilledAvgPrice
	slice.FillTime = time.Now()
	slice.Status = domain.SliceExecuted
	finalizePlan(plan)
}

func (r *ExecutionRouter) executeLimit(ctx context.Context, plan *domain.ExecutionPlan, limitPrice decimal.Decimal, gate GateFunc) {
	slice := plan.Slices[0]
	if gate != nil && !gate() {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	orderID, err := r.broker.Submit(ctx, plan.Symbol, slice.Quantity, plan.Side, domain.OrderTypeLimit, limitPrice)
	if err != nil {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	slice.OrderID = orderID
	report, err := r.broker.Status(ctx, orderID)
	if err != nil || report.Status != ports.OrderFilled {
		slice.Status = domain.SliceFailed
		finalizePlan(plan)
		return
	}
	slice.FillPrice = report.FilledAvgPrice
	slice.FillTime = time.Now()
	slice.Status = domain.SliceExecuted
	finalizePlan(plan)
}

// Cancel cancels a tracked plan by execution ID.
func (r *ExecutionRouter) Cancel(ctx context.Context, executionID string) bool {
	r.mu.Lock()
	plan, ok := r.plans[executionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return Cancel(ctx, plan, r.broker)
}

// History returns a snapshot of every route executed so far.
func (r *ExecutionRouter) History() []RouteResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RouteResult, len(r.history))
	copy(out, r.history)
	return out
}

func orderTypeFor(s domain.Strategy) domain.OrderType {
	switch s {
	case domain.StrategyMarket:
		return domain.OrderTypeMarket
	case domain.StrategyLimit:
		return domain.OrderTypeLimit
	case domain.StrategyTWAP:
		return domain.OrderTypeTWAP
	case domain.StrategyVWAP:
		return domain.OrderTypeVWAP
	case domain.StrategyIceberg:
		return domain.OrderTypeIceberg
	default:
		return domain.OrderTypeMarket
	}
}

func urgencyMultiplier(u Urgency) decimal.Decimal {
	switch u {
	case UrgencyImmediate:
		return decimal.NewFromFloat(1.5)
	case UrgencyHigh:
		return decimal.NewFromFloat(1.2)
	default:
		return decimal.NewFromInt(1)
	}
}
