package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position tracks a single symbol's signed share count and weighted average
// cost basis. Quantity is signed: positive is long, negative is short.
//
// Invariant: Quantity equals the running sum of signed fill quantities
// applied to it, and AvgCost resets to zero whenever Quantity crosses zero
// (the position closes and potentially reopens in the other direction).
type Position struct {
	Symbol      string
	Quantity    int64
	AvgCost     decimal.Decimal
	RealizedPnL decimal.Decimal
	OpenedAt    time.Time
	UpdatedAt   time.Time
}

// MarketValue returns the signed dollar exposure of the position at the
// given price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// IsFlat reports whether the position carries no shares.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// ApplyBuy enlarges (or opens) a long position, folding commission into the
// weighted average cost basis per spec §3.
func (p *Position) ApplyBuy(qty int64, price, commission decimal.Decimal, at time.Time) {
	if p.Quantity == 0 {
		p.OpenedAt = at
		p.AvgCost = decimal.Zero
	}
	cost := price.Mul(decimal.NewFromInt(qty)).Add(commission)
	existingCost := p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
	newQty := p.Quantity + qty
	p.AvgCost = existingCost.Add(cost).Div(decimal.NewFromInt(newQty))
	p.Quantity = newQty
	p.UpdatedAt = at
}

// ApplySell reduces a long position, realizing P&L on the portion sold and
// crediting the commission against it. Returns the realized P&L for this
// fill. Quantity must not exceed the current long quantity; the caller
// (PaperTrader) enforces that before calling.
func (p *Position) ApplySell(qty int64, price, commission decimal.Decimal, at time.Time) decimal.Decimal {
	realized := price.Sub(p.AvgCost).Mul(decimal.NewFromInt(qty)).Sub(commission)
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.Quantity -= qty
	p.UpdatedAt = at
	if p.Quantity == 0 {
		p.AvgCost = decimal.Zero
	}
	return realized
}
