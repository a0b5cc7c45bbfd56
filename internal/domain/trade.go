package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a closed-trade aggregate consumed by performance
// analytics (Sharpe ratio, win rate, average win/loss).
type TradeRecord struct {
	ID         string
	Symbol     string
	PnL        decimal.Decimal
	OpenedAt   time.Time
	ClosedAt   time.Time
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
}

// PortfolioSnapshot is a point-in-time value used for drawdown and Sharpe
// calculations.
type PortfolioSnapshot struct {
	Timestamp      time.Time
	PortfolioValue decimal.Decimal
	Cash           decimal.Decimal
}
