// Package broker implements an in-process paper BrokerAdapter. The spec's
// Non-goal is real order routing to an exchange; this adapter simulates
// fills deterministically around a reference price so the execution core
// can be exercised end-to-end without a live venue.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/engine/internal/domain"
	"github.com/tradecore/engine/internal/ports"
)

// PriceSource resolves a reference price for a symbol, typically the
// engine's MarketDataSource.
type PriceSource interface {
	ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Simulated is a paper BrokerAdapter: it "fills" market orders at the
// reference price and limit/iceberg orders at their limit price, and tracks
// order state in memory.
type Simulated struct {
	log    *zap.Logger
	prices PriceSource

	mu     sync.Mutex
	orders map[string]*simOrder
}

type simOrder struct {
	symbol    string
	qty       int64
	side      domain.OrderSide
	orderType domain.OrderType
	limit     decimal.Decimal
	status    ports.OrderAckStatus
	fillPrice decimal.Decimal
	filledQty int64
}

// New constructs a Simulated broker backed by the given price source.
func New(log *zap.Logger, prices PriceSource) *Simulated {
	return &Simulated{
		log:    log,
		prices: prices,
		orders: make(map[string]*simOrder),
	}
}

// Submit accepts a child order and fills it immediately against the
// reference price, retrying the price lookup with exponential backoff if
// it transiently fails (spec §7 "Upstream failure").
func (s *Simulated) Submit(ctx context.Context, symbol string, qty int64, side domain.OrderSide, orderType domain.OrderType, limitPrice decimal.Decimal) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("broker: quantity must be positive, got %d", qty)
	}

	var price decimal.Decimal
	op := func() error {
		p, err := s.prices.ReferencePrice(ctx, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		s.log.Warn("broker: price lookup failed after retries", zap.String("symbol", symbol), zap.Error(err))
		return "", fmt.Errorf("broker: no reference price for %s: %w", symbol, err)
	}

	fillPrice := price
	if orderType == domain.OrderTypeLimit || orderType == domain.OrderTypeIceberg {
		fillPrice = limitPrice
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.orders[id] = &simOrder{
		symbol:    symbol,
		qty:       qty,
		side:      side,
		orderType: orderType,
		limit:     limitPrice,
		status:    ports.OrderFilled,
		fillPrice: fillPrice,
		filledQty: qty,
	}
	s.mu.Unlock()

	return id, nil
}

// Status returns the simulated terminal fill for the order.
func (s *Simulated) Status(ctx context.Context, orderID string) (ports.OrderStatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ports.OrderStatusReport{}, fmt.Errorf("broker: unknown order %s", orderID)
	}
	return ports.OrderStatusReport{
		Status:         o.status,
		FilledAvgPrice: o.fillPrice,
		FilledQty:      o.filledQty,
	}, nil
}

// Cancel marks an order cancelled if it has not already filled. Since
// Submit fills synchronously, Cancel only matters for orders a caller never
// actually submitted through this adapter instance (e.g. a race in the
// caller's own bookkeeping) and otherwise reports false.
func (s *Simulated) Cancel(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.status == ports.OrderFilled {
		return false, nil
	}
	o.status = ports.OrderCancelled
	return true, nil
}

var _ ports.BrokerAdapter = (*Simulated)(nil)
