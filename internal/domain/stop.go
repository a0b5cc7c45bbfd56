package domain

import "github.com/shopspring/decimal"

// StopType is the algorithm used to compute and maintain a stop-loss.
type StopType int

const (
	StopFixedPct StopType = iota + 1
	StopATR
	StopTrailing
)

func (t StopType) String() string {
	switch t {
	case StopFixedPct:
		return "FIXED_PCT"
	case StopATR:
		return "ATR"
	case StopTrailing:
		return "TRAILING"
	default:
		return "UNKNOWN"
	}
}

// Stop represents one attached stop-loss order. The basic model allows at
// most one stop per symbol; re-attaching cancels and replaces atomically.
type Stop struct {
	Symbol       string
	EntryPrice   decimal.Decimal
	StopPrice    decimal.Decimal
	PositionSize int64
	RiskDollars  decimal.Decimal
	Type         StopType
	OrderID      string
	Armed        bool
	Side         OrderSide // side of the position being protected (BUY = long)
}
