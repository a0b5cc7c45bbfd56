package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/domain"
)

// StopManager computes, attaches, and tracks one stop-loss per symbol
// (spec §4.3). Re-attaching for a symbol that already has a stop cancels
// and replaces it atomically.
type StopManager struct {
	mu    sync.Mutex
	stops map[string]*domain.Stop
}

// NewStopManager constructs an empty manager.
func NewStopManager() *StopManager {
	return &StopManager{stops: make(map[string]*domain.Stop)}
}

// CalculateStop computes a Stop for the given entry without attaching
// it. param is the fixed-pct fraction (e.g. 0.05) or the ATR multiplier,
// depending on stopType.
func (m *StopManager) CalculateStop(symbol string, entry decimal.Decimal, size int64, side domain.OrderSide, stopType domain.StopType, param decimal.Decimal, atr decimal.Decimal) (domain.Stop, error) {
	var stopPrice decimal.Decimal

	switch stopType {
	case domain.StopFixedPct:
		if side == domain.SideBuy {
			stopPrice = entry.Mul(decimal.NewFromInt(1).Sub(param))
		} else {
			stopPrice = entry.Mul(decimal.NewFromInt(1).Add(param))
		}
	case domain.StopATR:
		delta := param.Mul(atr)
		if side == domain.SideBuy {
			stopPrice = entry.Sub(delta)
		} else {
			stopPrice = entry.Add(delta)
		}
	case domain.StopTrailing:
		// Trailing stops start at the same offset as a fixed-pct stop and
		// are then advanced only favorably by UpdateTrailing.
		if side == domain.SideBuy {
			stopPrice = entry.Mul(decimal.NewFromInt(1).Sub(param))
		} else {
			stopPrice = entry.Mul(decimal.NewFromInt(1).Add(param))
		}
	default:
		return domain.Stop{}, fmt.Errorf("stops: unknown stop type %v", stopType)
	}

	risk := entry.Sub(stopPrice).Abs().Mul(decimal.NewFromInt(size))

	return domain.Stop{
		Symbol:       symbol,
		EntryPrice:   entry,
		StopPrice:    stopPrice,
		PositionSize: size,
		RiskDollars:  risk,
		Type:         stopType,
		Side:         side,
		Armed:        true,
	}, nil
}

// Attach replaces any existing stop for the symbol with the given one.
func (m *StopManager) Attach(stop domain.Stop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := stop
	m.stops[stop.Symbol] = &s
}

// Get returns the current stop for a symbol, if any.
func (m *StopManager) Get(symbol string) (domain.Stop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stops[symbol]
	if !ok {
		return domain.Stop{}, false
	}
	return *s, true
}

// Remove deletes the stop for a symbol.
func (m *StopManager) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stops, symbol)
}

// UpdateTrailing advances a TRAILING stop toward the current price when it
// moves favorably, and never the other direction (spec §4.3).
func (m *StopManager) UpdateTrailing(symbol string, currentPrice decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stops[symbol]
	if !ok || s.Type != domain.StopTrailing {
		return
	}

	if s.Side == domain.SideBuy {
		delta := s.EntryPrice.Sub(s.StopPrice)
		candidate := currentPrice.Sub(delta)
		if candidate.GreaterThan(s.StopPrice) {
			s.StopPrice = candidate
			s.EntryPrice = currentPrice
		}
	} else {
		delta := s.StopPrice.Sub(s.EntryPrice)
		candidate := currentPrice.Add(delta)
		if candidate.LessThan(s.StopPrice) {
			s.StopPrice = candidate
			s.EntryPrice = currentPrice
		}
	}
}

// CheckTriggered reports whether the current price has breached the stop.
func (m *StopManager) CheckTriggered(symbol string, currentPrice decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stops[symbol]
	if !ok || !s.Armed {
		return false
	}

	if s.Side == domain.SideBuy {
		return currentPrice.LessThanOrEqual(s.StopPrice)
	}
	return currentPrice.GreaterThanOrEqual(s.StopPrice)
}
