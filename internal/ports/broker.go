// Package ports declares the external collaborators the execution core
// consumes but does not implement: the broker and the market-data feed.
// Per spec §1 these are named interfaces only — real order routing to an
// exchange is explicitly out of scope.
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradecore/engine/internal/domain"
)

// OrderAckStatus is the lifecycle state the broker reports back for a
// submitted child order.
type OrderAckStatus string

const (
	OrderNew       OrderAckStatus = "NEW"
	OrderPartial   OrderAckStatus = "PARTIAL"
	OrderFilled    OrderAckStatus = "FILLED"
	OrderCancelled OrderAckStatus = "CANCELLED"
	OrderRejected  OrderAckStatus = "REJECTED"
)

// OrderStatusReport is the broker's view of one submitted order.
type OrderStatusReport struct {
	Status          OrderAckStatus
	FilledAvgPrice  decimal.Decimal
	FilledQty       int64
}

// BrokerAdapter is consumed by the schedulers and the iceberg strategy to
// submit child orders and read back fills. Submit/Status/Cancel may block;
// timeout and retry are the caller's responsibility (spec §5).
type BrokerAdapter interface {
	Submit(ctx context.Context, symbol string, qty int64, side domain.OrderSide, orderType domain.OrderType, limitPrice decimal.Decimal) (orderID string, err error)
	Status(ctx context.Context, orderID string) (OrderStatusReport, error)
	Cancel(ctx context.Context, orderID string) (bool, error)
}
