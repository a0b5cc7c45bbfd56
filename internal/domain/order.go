package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the immutable direction of an order.
type OrderSide int

const (
	SideBuy OrderSide = iota + 1
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Sign returns +1 for BUY and -1 for SELL, used to turn a fill quantity into
// a signed position delta.
func (s OrderSide) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// OrderType is the order's execution style.
type OrderType int

const (
	OrderTypeMarket OrderType = iota + 1
	OrderTypeLimit
	OrderTypeStop
	OrderTypeTWAP
	OrderTypeVWAP
	OrderTypeIceberg
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStop:
		return "STOP"
	case OrderTypeTWAP:
		return "TWAP"
	case OrderTypeVWAP:
		return "VWAP"
	case OrderTypeIceberg:
		return "ICEBERG"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce mirrors the teacher's enum but only GTC/DAY are meaningful for
// a paper engine that never routes to a real exchange.
type TimeInForce int

const (
	TimeInForceGTC TimeInForce = iota + 1
	TimeInForceDAY
)

func (t TimeInForce) String() string {
	if t == TimeInForceDAY {
		return "DAY"
	}
	return "GTC"
}

// Order is the immutable request descriptor created by the router. It is
// persisted for audit and never mutated after creation; fills are recorded
// separately and the order is never destroyed.
type Order struct {
	ID          string
	Symbol      string
	Side        OrderSide
	Quantity    int64
	Type        OrderType
	LimitPrice  decimal.Decimal
	TimeInForce TimeInForce
	CreatedAt   time.Time
}

// Fill is an append-only record of an executed order (or child slice order).
type Fill struct {
	OrderID    string
	Timestamp  time.Time
	Price      decimal.Decimal
	Quantity   int64
	Commission decimal.Decimal
}

// Notional returns the gross dollar value of the fill, excluding commission.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}
