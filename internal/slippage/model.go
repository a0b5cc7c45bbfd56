// Package slippage implements pre-trade cost estimation and post-trade
// tracking for the execution core (spec §4.1).
package slippage

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/money"
)

// Config holds the model's tunable coefficients.
type Config struct {
	BaseSpreadBps decimal.Decimal // default 5 bps
	ImpactCoef    decimal.Decimal // square-root impact coefficient
	MaxImpactBps  decimal.Decimal // cap, default 100 bps
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		BaseSpreadBps: decimal.NewFromInt(5),
		ImpactCoef:    decimal.NewFromFloat(0.1),
		MaxImpactBps:  decimal.NewFromInt(100),
	}
}

// Estimate is the decomposed pre-trade slippage estimate.
type Estimate struct {
	Symbol         string
	SpreadBps      decimal.Decimal
	ImpactBps      decimal.Decimal
	UrgencyBps     decimal.Decimal
	VolatilityBps  decimal.Decimal
	TotalBps       decimal.Decimal
	DollarCost     decimal.Decimal
	EstimatedFill  decimal.Decimal
}

// Record is one recorded actual-fill slippage observation.
type Record struct {
	Symbol    string
	Side      domain.OrderSide
	OrderType domain.OrderType
	Bps       decimal.Decimal
	Dollars   decimal.Decimal
	Timestamp time.Time
}

// Model implements SlippageModel: Estimate, RecordActual, and reporting.
type Model struct {
	cfg Config

	mu      sync.Mutex
	history []Record
}

// New constructs a Model with the given configuration.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Estimate computes the decomposed pre-trade slippage for an order
// (spec §4.1 "Algorithm").
//
//   - Spread cost: base spread scaled by 1+2·vol if volatility is known.
//   - Market impact: sqrt(participation) model, capped.
//   - Urgency premium: MARKET orders only.
//   - Volatility adjustment: vol · spread.
func (m *Model) Estimate(symbol string, qty int64, side domain.OrderSide, price, adv decimal.Decimal, vol *decimal.Decimal, orderType domain.OrderType, urgencyMult decimal.Decimal) Estimate {
	spread := m.cfg.BaseSpreadBps
	if vol != nil {
		scale := decimal.NewFromInt(1).Add(decimal.NewFromInt(2).Mul(*vol))
		spread = spread.Mul(scale)
	}

	impact := decimal.Zero
	if adv.IsPositive() {
		participation := decimal.NewFromInt(qty).Div(adv)
		if participation.IsNegative() {
			participation = participation.Neg()
		}
		impact = m.cfg.ImpactCoef.Mul(money.Sqrt(participation)).Mul(money.TenThousand)
		if impact.GreaterThan(m.cfg.MaxImpactBps) {
			impact = m.cfg.MaxImpactBps
		}
	}

	urgency := decimal.Zero
	if orderType == domain.OrderTypeMarket && urgencyMult.GreaterThan(decimal.NewFromInt(1)) {
		urgency = urgencyMult.Sub(decimal.NewFromInt(1)).Mul(spread)
	}

	volAdj := decimal.Zero
	if vol != nil {
		volAdj = vol.Mul(spread)
	}

	total := spread.Add(impact).Add(urgency).Add(volAdj)
	dollarCost := price.Mul(decimal.NewFromInt(qty)).Mul(total).Div(money.TenThousand)

	fraction := money.FromBps(total)
	var fill decimal.Decimal
	if side == domain.SideBuy {
		fill = price.Mul(decimal.NewFromInt(1).Add(fraction))
	} else {
		fill = price.Mul(decimal.NewFromInt(1).Sub(fraction))
	}

	return Estimate{
		Symbol:        symbol,
		SpreadBps:     spread,
		ImpactBps:     impact,
		UrgencyBps:    urgency,
		VolatilityBps: volAdj,
		TotalBps:      total,
		DollarCost:    dollarCost,
		EstimatedFill: fill,
	}
}

// RecordActual appends a post-trade slippage observation computed from the
// expected vs actual fill price.
func (m *Model) RecordActual(symbol string, qty int64, side domain.OrderSide, expectedPrice, actualPrice decimal.Decimal, orderType domain.OrderType) Record {
	var bps decimal.Decimal
	if expectedPrice.IsPositive() {
		delta := actualPrice.Sub(expectedPrice)
		if side == domain.SideSell {
			delta = delta.Neg()
		}
		bps = delta.Div(expectedPrice).Mul(money.TenThousand)
	}
	dollars := actualPrice.Sub(expectedPrice).Mul(decimal.NewFromInt(qty)).Abs()

	rec := Record{
		Symbol:    symbol,
		Side:      side,
		OrderType: orderType,
		Bps:       bps,
		Dollars:   dollars,
		Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.history = append(m.history, rec)
	m.mu.Unlock()

	return rec
}

// Stats aggregates recorded slippage, optionally filtered by symbol.
type Stats struct {
	Count      int
	MeanBps    decimal.Decimal
	MedianBps  decimal.Decimal
	MaxBps     decimal.Decimal
	SumDollars decimal.Decimal
	BuyCount   int
	SellCount  int
}

// Report computes aggregate statistics, filtering by symbol when non-empty.
func (m *Model) Report(symbol string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Record
	for _, r := range m.history {
		if symbol == "" || r.Symbol == symbol {
			matched = append(matched, r)
		}
	}

	stats := Stats{}
	if len(matched) == 0 {
		return stats
	}

	sum := decimal.Zero
	max := matched[0].Bps
	bpsValues := make([]decimal.Decimal, 0, len(matched))
	for _, r := range matched {
		sum = sum.Add(r.Bps)
		stats.SumDollars = stats.SumDollars.Add(r.Dollars)
		if r.Bps.GreaterThan(max) {
			max = r.Bps
		}
		if r.Side == domain.SideBuy {
			stats.BuyCount++
		} else {
			stats.SellCount++
		}
		bpsValues = append(bpsValues, r.Bps)
	}

	sort.Slice(bpsValues, func(i, j int) bool { return bpsValues[i].LessThan(bpsValues[j]) })

	stats.Count = len(matched)
	stats.MeanBps = sum.Div(decimal.NewFromInt(int64(len(matched))))
	stats.MedianBps = bpsValues[len(bpsValues)/2]
	stats.MaxBps = max
	return stats
}

// QualityGrade classifies execution quality as actual/expected*100.
type QualityGrade string

const (
	QualityExcellent QualityGrade = "EXCELLENT"
	QualityGood      QualityGrade = "GOOD"
	QualityFair      QualityGrade = "FAIR"
	QualityPoor      QualityGrade = "POOR"
)

// Quality scores a fill against its expectation per spec §4.1.
func Quality(actual, expected decimal.Decimal) QualityGrade {
	if expected.IsZero() {
		return QualityPoor
	}
	ratio := actual.Div(expected).Mul(money.Hundred)
	switch {
	case ratio.LessThan(decimal.NewFromInt(90)):
		return QualityExcellent
	case ratio.LessThan(decimal.NewFromInt(110)):
		return QualityGood
	case ratio.LessThan(decimal.NewFromInt(130)):
		return QualityFair
	default:
		return QualityPoor
	}
}
