// Package paper implements PaperTrader and ExecutionMonitor, the
// integration point that ties the risk gate and execution router into an
// order lifecycle with a cash/position ledger and performance analytics
// (spec §4.7-§4.8).
package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/execution"
	"github.com/tradecore/engine/internal/money"
	"github.com/tradecore/engine/internal/ports"
	"github.com/tradecore/engine/internal/risk"
)

// Repository persists positions, fills, and portfolio snapshots. Postgres
// is the production implementation; tests may supply a no-op stub.
type Repository interface {
	SavePosition(ctx context.Context, pos domain.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	SaveTrade(ctx context.Context, fill domain.Fill, symbol string, side domain.OrderSide, pnl *decimal.Decimal) error
	SaveSnapshot(ctx context.Context, snap domain.PortfolioSnapshot) error
}

// Config configures commission, slippage, and market-hours behavior for
// PaperTrader's own simple fill model (spec §6.4). This is distinct from
// the execution router's SlippageModel, which prices pre-trade estimates
// for scheduled strategies.
type Config struct {
	InitialCash                 decimal.Decimal
	CommissionPerTrade          decimal.Decimal
	CommissionPerShare          decimal.Decimal
	MinSlippage                 decimal.Decimal
	SlippageVolatilityMultiplier decimal.Decimal
	EnforceMarketHours           bool
	ExchangeLocation              *time.Location
}

// DefaultConfig matches the scenario defaults in spec §8 S1.
func DefaultConfig() Config {
	return Config{
		InitialCash:                  decimal.NewFromInt(100000),
		CommissionPerTrade:           decimal.NewFromInt(1),
		CommissionPerShare:           decimal.NewFromFloat(0.005),
		MinSlippage:                  decimal.NewFromFloat(0.0001),
		SlippageVolatilityMultiplier: decimal.NewFromInt(1),
		EnforceMarketHours:           false,
		ExchangeLocation:             time.UTC,
	}
}

// PaperTrader is the top-level intent handler: gate, size, route, ledger,
// analytics (spec §4.7).
type PaperTrader struct {
	cfg Config
	log *zap.Logger

	market   ports.MarketDataSource
	router   *execution.ExecutionRouter
	stops    *risk.StopManager
	breaker  *risk.CircuitBreaker
	kelly    *risk.KellySizer
	repo     Repository
	audit    AuditSink
	monitor  *ExecutionMonitor

	mu         sync.Mutex
	cash       decimal.Decimal
	positions  map[string]*domain.Position
	fills      []domain.Fill
	trades     []domain.TradeRecord
	snapshots  []domain.PortfolioSnapshot
	lastPrices map[string]decimal.Decimal
}

// AuditSink receives a structured line for every fill ("fill" from
// PlaceMarketOrder/PlaceLimitOrder, "routed_fill" from PlaceRoutedOrder);
// trades and breaker trips are not recorded. The production wiring is the
// rotating audit log.
type AuditSink interface {
	Record(kind string, fields map[string]interface{})
}

// New constructs a PaperTrader seeded with InitialCash.
func New(cfg Config, log *zap.Logger, market ports.MarketDataSource, router *execution.ExecutionRouter, stops *risk.StopManager, breaker *risk.CircuitBreaker, kelly *risk.KellySizer, repo Repository, audit AuditSink, monitor *ExecutionMonitor) *PaperTrader {
	if cfg.ExchangeLocation == nil {
		cfg.ExchangeLocation = time.UTC
	}
	return &PaperTrader{
		cfg:        cfg,
		log:        log,
		market:     market,
		router:     router,
		stops:      stops,
		breaker:    breaker,
		kelly:      kelly,
		repo:       repo,
		audit:      audit,
		monitor:    monitor,
		cash:       cfg.InitialCash,
		positions:  make(map[string]*domain.Position),
		lastPrices: make(map[string]decimal.Decimal),
	}
}

// isMarketOpen reports whether t, converted to the exchange timezone, falls
// within [09:30, 16:00) Monday-Friday.
func isMarketOpen(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	closeT := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, loc)
	return !local.Before(open) && local.Before(closeT)
}

// resolvePrice queries the market data source, falling back to the last
// cached price for the symbol; returns an error if neither is available
// (spec §4.7 step 4).
func (t *PaperTrader) resolvePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if t.market != nil {
		if q, err := t.market.LatestQuote(ctx, symbol); err == nil && q != nil {
			t.mu.Lock()
			t.lastPrices[symbol] = q.Mid()
			t.mu.Unlock()
			return q.Mid(), nil
		}
	}
	t.mu.Lock()
	price, ok := t.lastPrices[symbol]
	t.mu.Unlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("paper: no price available for %s", symbol)
	}
	return price, nil
}

// applySimpleSlippage implements the trader's own fill-cost rule (spec
// §4.7 step 5): size_factor * sqrt(qty/1000) with size_factor 0.0005,
// floored at min_slippage, scaled by a volatility multiplier, sign-flipped
// for SELL. There is no separate base slippage term.
func (t *PaperTrader) applySimpleSlippage(price decimal.Decimal, qty int64, side domain.OrderSide) decimal.Decimal {
	const sizeFactor = 0.0005
	participation := math.Sqrt(float64(qty) / 1000.0)
	slip := decimal.NewFromFloat(sizeFactor * participation)
	if slip.LessThan(t.cfg.MinSlippage) {
		slip = t.cfg.MinSlippage
	}
	slip = slip.Mul(t.cfg.SlippageVolatilityMultiplier)

	if side == domain.SideSell {
		slip = slip.Neg()
	}
	return price.Mul(decimal.NewFromInt(1).Add(slip))
}

func (t *PaperTrader) commission(qty int64) decimal.Decimal {
	c := t.cfg.CommissionPerTrade.Add(t.cfg.CommissionPerShare.Mul(decimal.NewFromInt(qty)))
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// PlacementResult is returned by PlaceMarketOrder/PlaceLimitOrder.
type PlacementResult struct {
	OrderID    string
	FillPrice  decimal.Decimal
	Commission decimal.Decimal
	Rejected   bool
	Reason     string
}

// PlaceMarketOrder runs the full placement sequence from spec §4.7 for a
// MARKET fill against the trader's own simple slippage model.
func (t *PaperTrader) PlaceMarketOrder(ctx context.Context, symbol string, qty int64, side domain.OrderSide, autoStop bool, stopPct decimal.Decimal) PlacementResult {
	return t.place(ctx, symbol, qty, side, nil, autoStop, stopPct)
}

// PlaceLimitOrder is identical to PlaceMarketOrder except the fill is
// capped at the supplied limit price (never worse for the trader).
func (t *PaperTrader) PlaceLimitOrder(ctx context.Context, symbol string, qty int64, side domain.OrderSide, limitPrice decimal.Decimal) PlacementResult {
	return t.place(ctx, symbol, qty, side, &limitPrice, false, decimal.Zero)
}

func (t *PaperTrader) place(ctx context.Context, symbol string, qty int64, side domain.OrderSide, limitPrice *decimal.Decimal, autoStop bool, stopPct decimal.Decimal) PlacementResult {
	// 1. Reject non-positive quantity.
	if qty <= 0 {
		return PlacementResult{Rejected: true, Reason: "quantity must be positive"}
	}

	// 2. Market hours.
	if t.cfg.EnforceMarketHours && !isMarketOpen(time.Now(), t.cfg.ExchangeLocation) {
		return PlacementResult{Rejected: true, Reason: "market closed"}
	}

	// 3. Circuit breaker gate.
	portfolioValue := t.PortfolioValue(ctx)
	check := t.breaker.Check(portfolioValue, nil, nil, nil)
	if !check.Allowed {
		t.log.Warn("paper: placement blocked by circuit breaker", zap.Strings("reasons", check.Reasons))
		return PlacementResult{Rejected: true, Reason: "circuit breaker tripped"}
	}

	// 4. Resolve price.
	price, err := t.resolvePrice(ctx, symbol)
	if err != nil {
		return PlacementResult{Rejected: true, Reason: err.Error()}
	}

	// 5. Slippage.
	fillPrice := t.applySimpleSlippage(price, qty, side)
	if limitPrice != nil {
		if side == domain.SideBuy && fillPrice.GreaterThan(*limitPrice) {
			fillPrice = *limitPrice
		}
		if side == domain.SideSell && fillPrice.LessThan(*limitPrice) {
			fillPrice = *limitPrice
		}
	}

	// 6. Commission.
	commission := t.commission(qty)

	t.mu.Lock()
	pos, ok := t.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		t.positions[symbol] = pos
	}

	var realizedPnL *decimal.Decimal
	now := time.Now().UTC()

	if side == domain.SideBuy {
		cost := decimal.NewFromInt(qty).Mul(fillPrice).Add(commission)
		if t.cash.LessThan(cost) {
			t.mu.Unlock()
			return PlacementResult{Rejected: true, Reason: "insufficient cash"}
		}
		t.cash = t.cash.Sub(cost)
		pos.ApplyBuy(qty, fillPrice, commission, now)
	} else {
		if pos.Quantity < qty {
			t.mu.Unlock()
			return PlacementResult{Rejected: true, Reason: "insufficient position"}
		}
		proceeds := decimal.NewFromInt(qty).Mul(fillPrice).Sub(commission)
		t.cash = t.cash.Add(proceeds)
		pnl := pos.ApplySell(qty, fillPrice, commission, now)
		realizedPnL = &pnl
		if pos.IsFlat() {
			delete(t.positions, symbol)
		}
	}

	orderID := uuid.NewString()
	fill := domain.Fill{OrderID: orderID, Timestamp: now, Price: fillPrice, Quantity: qty, Commission: commission}
	t.fills = append(t.fills, fill)

	if realizedPnL != nil {
		t.trades = append(t.trades, domain.TradeRecord{
			ID:        orderID,
			Symbol:    symbol,
			PnL:       *realizedPnL,
			ClosedAt:  now,
			ExitPrice: fillPrice,
		})
	}

	posSnapshot := *pos
	posStillOpen := !posSnapshot.IsFlat()
	t.mu.Unlock()

	// 9. Stop attachment for opening/enlarging longs.
	if side == domain.SideBuy && autoStop && t.stops != nil && stopPct.IsPositive() {
		stop, err := t.stops.CalculateStop(symbol, fillPrice, qty, side, domain.StopFixedPct, stopPct, decimal.Zero)
		if err == nil {
			t.stops.Attach(stop)
		}
	}

	// 10. Record trade with breaker for realized P&L.
	if realizedPnL != nil && t.breaker != nil {
		t.breaker.RecordTrade(*realizedPnL)
	}

	// 11. Persist.
	if t.repo != nil {
		if posStillOpen {
			_ = t.repo.SavePosition(ctx, posSnapshot)
		} else {
			_ = t.repo.DeletePosition(ctx, symbol)
		}
		_ = t.repo.SaveTrade(ctx, fill, symbol, side, realizedPnL)
		_ = t.repo.SaveSnapshot(ctx, domain.PortfolioSnapshot{Timestamp: now, PortfolioValue: t.PortfolioValue(ctx), Cash: t.cash})
	}
	t.mu.Lock()
	t.snapshots = append(t.snapshots, domain.PortfolioSnapshot{Timestamp: now, PortfolioValue: t.portfolioValueLocked(), Cash: t.cash})
	t.mu.Unlock()

	if t.audit != nil {
		t.audit.Record("fill", map[string]interface{}{
			"order_id": orderID, "symbol": symbol, "side": side.String(),
			"qty": qty, "price": fillPrice.String(), "commission": commission.String(),
		})
	}

	return PlacementResult{OrderID: orderID, FillPrice: fillPrice, Commission: commission}
}

// CalculatePositionSize delegates to the KellySizer after refreshing its
// account-balance snapshot (spec §4.7, Design Note 9's cycle-breaking
// snapshot pattern).
func (t *PaperTrader) CalculatePositionSize(ctx context.Context, symbol string, winRate, avgWin, avgLoss, fraction decimal.Decimal) risk.Result {
	t.kelly.UpdateAccountBalance(t.PortfolioValue(ctx))
	t.kelly.UpdatePositions(t.positionValues(ctx))
	var price *decimal.Decimal
	if p, err := t.resolvePrice(ctx, symbol); err == nil {
		price = &p
	}
	return t.kelly.CalculatePositionSize(winRate, avgWin, avgLoss, fraction, price, symbol)
}

func (t *PaperTrader) positionValues(ctx context.Context) map[string]decimal.Decimal {
	t.mu.Lock()
	symbols := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		symbols = append(symbols, sym)
	}
	t.mu.Unlock()

	values := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		t.mu.Lock()
		pos := *t.positions[sym]
		t.mu.Unlock()
		price, err := t.resolvePrice(ctx, sym)
		if err != nil {
			price = pos.AvgCost
		}
		values[sym] = pos.MarketValue(price).Abs()
	}
	return values
}

// CheckCircuitBreakers exposes the breaker gate's current view without
// side effects beyond what Check already performs.
func (t *PaperTrader) CheckCircuitBreakers(ctx context.Context) risk.CheckResult {
	return t.breaker.Check(t.PortfolioValue(ctx), nil, nil, nil)
}

// PortfolioValue returns cash plus the mark-to-market value of every open
// position.
func (t *PaperTrader) PortfolioValue(ctx context.Context) decimal.Decimal {
	t.mu.Lock()
	symbols := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		symbols = append(symbols, sym)
	}
	cash := t.cash
	t.mu.Unlock()

	total := cash
	for _, sym := range symbols {
		t.mu.Lock()
		pos := *t.positions[sym]
		t.mu.Unlock()
		price, err := t.resolvePrice(ctx, sym)
		if err != nil {
			price = pos.AvgCost
		}
		total = total.Add(pos.MarketValue(price))
	}
	return total
}

func (t *PaperTrader) portfolioValueLocked() decimal.Decimal {
	total := t.cash
	for _, pos := range t.positions {
		total = total.Add(pos.MarketValue(pos.AvgCost))
	}
	return total
}

// Summary is the output of GetPerformanceSummary.
type Summary struct {
	PortfolioValue   decimal.Decimal
	Cash             decimal.Decimal
	Sharpe           *decimal.Decimal
	MaxDrawdownPct   decimal.Decimal
	MaxDrawdownDollars decimal.Decimal
	WinRate          decimal.Decimal
	AvgWin           decimal.Decimal
	AvgLoss          decimal.Decimal
	ClosedTrades     int
}

// GetPerformanceSummary computes Sharpe, max drawdown, win rate, and
// average win/loss per spec §4.7 "Performance analytics".
func (t *PaperTrader) GetPerformanceSummary(ctx context.Context) Summary {
	t.mu.Lock()
	trades := make([]domain.TradeRecord, len(t.trades))
	copy(trades, t.trades)
	snaps := make([]domain.PortfolioSnapshot, len(t.snapshots))
	copy(snaps, t.snapshots)
	t.mu.Unlock()

	summary := Summary{
		PortfolioValue: t.PortfolioValue(ctx),
		Cash:           t.cashSnapshot(),
	}

	summary.Sharpe = t.sharpe(trades)
	ddPct, ddDollars := maxDrawdown(snaps)
	summary.MaxDrawdownPct = ddPct
	summary.MaxDrawdownDollars = ddDollars

	var wins, losses int
	winSum, lossSum := decimal.Zero, decimal.Zero
	for _, tr := range trades {
		if tr.PnL.IsPositive() {
			wins++
			winSum = winSum.Add(tr.PnL)
		} else if tr.PnL.IsNegative() {
			losses++
			lossSum = lossSum.Add(tr.PnL)
		}
	}
	summary.ClosedTrades = len(trades)
	if wins+losses > 0 {
		summary.WinRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(wins + losses)))
	}
	if wins > 0 {
		summary.AvgWin = winSum.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		summary.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(losses)))
	}
	return summary
}

func (t *PaperTrader) cashSnapshot() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cash
}

// sharpe computes the annualized daily Sharpe ratio over per-closed-trade
// returns (spec §4.7).
func (t *PaperTrader) sharpe(trades []domain.TradeRecord) *decimal.Decimal {
	if len(trades) < 2 {
		return nil
	}
	initial, _ := t.cfg.InitialCash.Float64()
	if initial == 0 {
		return nil
	}
	returns := make([]float64, 0, len(trades))
	for _, tr := range trades {
		pnl, _ := tr.PnL.Float64()
		returns = append(returns, pnl/initial)
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return nil
	}

	annMean := mean * 252
	annStd := std * math.Sqrt(252)
	sharpe := decimal.NewFromFloat(annMean / annStd)
	return &sharpe
}

// maxDrawdown walks ordered snapshots tracking a running peak, returning
// the maximum drawdown as a negative percentage and its dollar amount.
func maxDrawdown(snaps []domain.PortfolioSnapshot) (decimal.Decimal, decimal.Decimal) {
	if len(snaps) == 0 {
		return decimal.Zero, decimal.Zero
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp.Before(snaps[j].Timestamp) })

	peak := snaps[0].PortfolioValue
	maxDD := decimal.Zero
	maxDollars := decimal.Zero
	for _, s := range snaps {
		if s.PortfolioValue.GreaterThan(peak) {
			peak = s.PortfolioValue
		}
		if peak.IsZero() {
			continue
		}
		dollars := peak.Sub(s.PortfolioValue)
		dd := dollars.Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDollars = dollars
		}
	}
	return maxDD.Neg(), maxDollars
}

// PlaceRoutedOrder runs the §2 control-flow path for larger strategic
// intents: circuit breaker gate, then ExecutionRouter.Route (which itself
// picks MARKET/TWAP/VWAP/LIMIT/ICEBERG and records pre/post-trade
// slippage), then applies the resulting plan's executed quantity and
// average fill price to the cash/position ledger as a single trade.
func (t *PaperTrader) PlaceRoutedOrder(ctx context.Context, symbol string, qty int64, side domain.OrderSide, urgency execution.Urgency, adv *decimal.Decimal, windowMinutes int, gate execution.GateFunc) (execution.RouteResult, PlacementResult) {
	if qty <= 0 {
		return execution.RouteResult{}, PlacementResult{Rejected: true, Reason: "quantity must be positive"}
	}
	if t.cfg.EnforceMarketHours && !isMarketOpen(time.Now(), t.cfg.ExchangeLocation) {
		return execution.RouteResult{}, PlacementResult{Rejected: true, Reason: "market closed"}
	}

	portfolioValue := t.PortfolioValue(ctx)
	check := t.breaker.Check(portfolioValue, nil, nil, nil)
	if !check.Allowed {
		return execution.RouteResult{}, PlacementResult{Rejected: true, Reason: "circuit breaker tripped"}
	}

	result, err := t.router.Route(ctx, symbol, qty, side, nil, urgency, adv, windowMinutes, gate)
	if err != nil {
		return result, PlacementResult{Rejected: true, Reason: err.Error()}
	}
	if t.monitor != nil {
		t.monitor.Observe(result)
	}

	executedQty := result.Plan.ExecutedQuantity()
	if executedQty == 0 {
		return result, PlacementResult{Rejected: true, Reason: "no slices executed"}
	}
	avgPrice := result.Plan.AveragePrice()
	commission := t.commission(executedQty)

	t.mu.Lock()
	pos, ok := t.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		t.positions[symbol] = pos
	}
	now := time.Now().UTC()
	var realizedPnL *decimal.Decimal

	if side == domain.SideBuy {
		cost := decimal.NewFromInt(executedQty).Mul(avgPrice).Add(commission)
		if t.cash.LessThan(cost) {
			t.mu.Unlock()
			return result, PlacementResult{Rejected: true, Reason: "insufficient cash"}
		}
		t.cash = t.cash.Sub(cost)
		pos.ApplyBuy(executedQty, avgPrice, commission, now)
	} else {
		if pos.Quantity < executedQty {
			t.mu.Unlock()
			return result, PlacementResult{Rejected: true, Reason: "insufficient position"}
		}
		proceeds := decimal.NewFromInt(executedQty).Mul(avgPrice).Sub(commission)
		t.cash = t.cash.Add(proceeds)
		pnl := pos.ApplySell(executedQty, avgPrice, commission, now)
		realizedPnL = &pnl
		if pos.IsFlat() {
			delete(t.positions, symbol)
		}
	}

	orderID := uuid.NewString()
	fill := domain.Fill{OrderID: orderID, Timestamp: now, Price: avgPrice, Quantity: executedQty, Commission: commission}
	t.fills = append(t.fills, fill)
	if realizedPnL != nil {
		t.trades = append(t.trades, domain.TradeRecord{ID: orderID, Symbol: symbol, PnL: *realizedPnL, ClosedAt: now, ExitPrice: avgPrice})
		t.breaker.RecordTrade(*realizedPnL)
	}
	t.snapshots = append(t.snapshots, domain.PortfolioSnapshot{Timestamp: now, PortfolioValue: t.portfolioValueLocked(), Cash: t.cash})
	t.mu.Unlock()

	if t.repo != nil {
		_ = t.repo.SaveTrade(ctx, fill, symbol, side, realizedPnL)
	}
	if t.audit != nil {
		t.audit.Record("routed_fill", map[string]interface{}{
			"execution_id": result.Plan.ExecutionID, "symbol": symbol, "strategy": result.Plan.Strategy.String(),
			"qty": executedQty, "avg_price": avgPrice.String(),
		})
	}

	return result, PlacementResult{OrderID: orderID, FillPrice: avgPrice, Commission: commission}
}

// ResetPortfolio restores cash to InitialCash and clears all positions,
// fills, trades, and snapshots. Used between paper-trading sessions.
func (t *PaperTrader) ResetPortfolio() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cash = t.cfg.InitialCash
	t.positions = make(map[string]*domain.Position)
	t.fills = nil
	t.trades = nil
	t.snapshots = nil
}
