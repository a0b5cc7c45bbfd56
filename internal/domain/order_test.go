package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderSide_SignMatchesDirection(t *testing.T) {
	assert.Equal(t, int64(1), SideBuy.Sign())
	assert.Equal(t, int64(-1), SideSell.Sign())
}

func TestOrderSide_String(t *testing.T) {
	assert.Equal(t, "BUY", SideBuy.String())
	assert.Equal(t, "SELL", SideSell.String())
	assert.Equal(t, "UNKNOWN", OrderSide(99).String())
}

func TestFill_NotionalExcludesCommission(t *testing.T) {
	f := Fill{Price: decimal.NewFromInt(100), Quantity: 10, Commission: decimal.NewFromInt(5)}
	assert.True(t, f.Notional().Equal(decimal.NewFromInt(1000)))
}

func TestTimeInForce_String(t *testing.T) {
	assert.Equal(t, "DAY", TimeInForceDAY.String())
	assert.Equal(t, "GTC", TimeInForceGTC.String())
}
