// Package marketdata implements an in-process paper MarketDataSource. The
// quote feed is rate-limited exactly as spec §6.2 describes a production
// broker adapter enforcing a sliding window, and a background heartbeat
// simulates the streaming subsystem's reconnect-with-backoff behavior
// (spec §5).
package marketdata

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradecore/engine/internal/ports"
)

// Simulated is a deterministic random-walk MarketDataSource for paper
// trading: each symbol carries a last price that walks by a small random
// increment on every quote, bounded by a rate limiter.
type Simulated struct {
	log     *zap.Logger
	limiter *rate.Limiter
	rng     *rand.Rand

	mu            sync.Mutex
	prices        map[string]decimal.Decimal
	advs          map[string]decimal.Decimal
	subscribed    map[string]bool
	lastActivity  time.Time
}

// Config tunes the simulated feed.
type Config struct {
	RequestsPerWindow int           // default 200
	Window            time.Duration // default 60s
	Seed              int64
}

// DefaultConfig matches spec §6.2's "200 req / 60s" sliding window.
func DefaultConfig() Config {
	return Config{RequestsPerWindow: 200, Window: 60 * time.Second, Seed: 1}
}

// New constructs a Simulated feed seeded with starting prices and ADVs.
func New(log *zap.Logger, cfg Config, startPrices, adv map[string]decimal.Decimal) *Simulated {
	if cfg.RequestsPerWindow == 0 {
		cfg = DefaultConfig()
	}
	ratePerSec := float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()
	prices := make(map[string]decimal.Decimal, len(startPrices))
	for k, v := range startPrices {
		prices[k] = v
	}
	advCopy := make(map[string]decimal.Decimal, len(adv))
	for k, v := range adv {
		advCopy[k] = v
	}
	return &Simulated{
		log:          log,
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), cfg.RequestsPerWindow),
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		prices:       prices,
		advs:         advCopy,
		subscribed:   make(map[string]bool),
		lastActivity: time.Now(),
	}
}

// Subscribe registers a symbol as part of the live streaming set, so a
// reconnect after silence knows what to re-subscribe to (spec §5).
func (s *Simulated) Subscribe(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed[symbol] = true
}

func (s *Simulated) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Simulated) silentFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *Simulated) subscribedSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subscribed))
	for sym := range s.subscribed {
		out = append(out, sym)
	}
	return out
}

// awaitCapacity blocks the caller until the sliding window has room,
// matching spec §6.2's "callers must tolerate backpressure; sleeps when
// saturated".
func (s *Simulated) awaitCapacity(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// LatestQuote returns a bid/ask/last built around the symbol's current
// random-walk price.
func (s *Simulated) LatestQuote(ctx context.Context, symbol string) (*ports.Quote, error) {
	if err := s.awaitCapacity(ctx); err != nil {
		return nil, fmt.Errorf("marketdata: rate limit wait: %w", err)
	}
	s.touch()

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("marketdata: unknown symbol %s", symbol)
	}

	step := last.Mul(decimal.NewFromFloat((s.rng.Float64() - 0.5) * 0.002))
	last = last.Add(step)
	if last.IsNegative() || last.IsZero() {
		last = decimal.NewFromFloat(0.01)
	}
	s.prices[symbol] = last

	spread := last.Mul(decimal.NewFromFloat(0.0005))
	return &ports.Quote{
		Symbol:    symbol,
		Bid:       last.Sub(spread),
		Ask:       last.Add(spread),
		Last:      last,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Bars synthesizes a flat OHLCV history around the current price; the
// execution core only consults bars for volatility/volume context, not for
// back-testing (explicitly a Non-goal).
func (s *Simulated) Bars(ctx context.Context, symbol string, timeframe ports.Timeframe, start, end time.Time, limit int) ([]ports.Bar, error) {
	if err := s.awaitCapacity(ctx); err != nil {
		return nil, fmt.Errorf("marketdata: rate limit wait: %w", err)
	}
	s.mu.Lock()
	price, ok := s.prices[symbol]
	adv := s.advs[symbol]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("marketdata: unknown symbol %s", symbol)
	}

	if limit <= 0 {
		limit = 1
	}
	bars := make([]ports.Bar, 0, limit)
	cursor := end
	for i := 0; i < limit; i++ {
		bars = append([]ports.Bar{{
			Timestamp: cursor,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    adv.Div(decimal.NewFromInt(390)), // one minute's share of an equity trading day
		}}, bars...)
		cursor = cursor.Add(-time.Minute)
	}
	return bars, nil
}

// AverageDailyVolume returns the seeded ADV for the symbol.
func (s *Simulated) AverageDailyVolume(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := s.awaitCapacity(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("marketdata: rate limit wait: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	adv, ok := s.advs[symbol]
	if !ok {
		return decimal.Zero, nil
	}
	return adv, nil
}

var _ ports.MarketDataSource = (*Simulated)(nil)

// ReferencePrice implements broker.PriceSource so the simulated broker can
// fill child orders against this feed without a circular package import.
func (s *Simulated) ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := s.LatestQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Last, nil
}

// Heartbeat runs until ctx is cancelled, polling for silence on the feed
// and triggering a reconnect-with-backoff when the gap exceeds
// silenceThreshold, matching spec §5's streaming subsystem description.
func (s *Simulated) Heartbeat(ctx context.Context, silenceThreshold time.Duration, reconnect func(ctx context.Context, symbols []string) error) {
	ticker := time.NewTicker(silenceThreshold / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.silentFor() < silenceThreshold {
				continue
			}
			symbols := s.subscribedSymbols()
			if err := s.reconnectWithBackoff(ctx, func() error {
				return reconnect(ctx, symbols)
			}); err != nil {
				s.log.Warn("marketdata: reconnect exhausted retries", zap.Error(err))
				continue
			}
			s.touch()
		}
	}
}

// reconnectWithBackoff retries a reconnect operation up to 5 attempts with
// exponential backoff, base 1s doubling to a 60s cap, per spec §5.
func (s *Simulated) reconnectWithBackoff(ctx context.Context, reconnect func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 60 * time.Second
	bounded := backoff.WithMaxRetries(bo, 4) // first attempt plus four retries
	return backoff.Retry(reconnect, backoff.WithContext(bounded, ctx))
}
