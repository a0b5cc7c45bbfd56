package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest bid/ask/last for a symbol.
type Quote struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Timestamp time.Time
}

// Mid returns the midpoint of bid and ask.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Timeframe names the bar aggregation period requested from the feed.
type Timeframe string

const (
	TimeframeMinute Timeframe = "1Min"
	TimeframeDay    Timeframe = "1Day"
)

// MarketDataSource supplies quotes, bars, and average daily volume. Callers
// must tolerate nil/zero results: the feed is rate-limited and may return
// nothing under backpressure (spec §6.2).
type MarketDataSource interface {
	LatestQuote(ctx context.Context, symbol string) (*Quote, error)
	Bars(ctx context.Context, symbol string, timeframe Timeframe, start, end time.Time, limit int) ([]Bar, error)
	AverageDailyVolume(ctx context.Context, symbol string) (decimal.Decimal, error)
}
