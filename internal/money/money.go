// Package money provides the decimal-safe arithmetic helpers shared by every
// component that touches price, quantity, or cash.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity, exported so callers never hand-roll
// decimal.NewFromInt(0).
var Zero = decimal.Zero

// Hundred is used throughout the risk and slippage packages to convert
// fractions to percentages and basis points.
var Hundred = decimal.NewFromInt(100)

// TenThousand converts a fraction into basis points (1bp = 1/10000).
var TenThousand = decimal.NewFromInt(10000)

// Bps expresses a decimal fraction (e.g. 0.0005) in basis points (5).
func Bps(fraction decimal.Decimal) decimal.Decimal {
	return fraction.Mul(TenThousand)
}

// FromBps converts a basis-point value back into a fraction.
func FromBps(bps decimal.Decimal) decimal.Decimal {
	return bps.Div(TenThousand)
}

// RoundShares floors a fractional share count to a whole share, never
// rounding up past what the dollar budget supports.
func RoundShares(shares decimal.Decimal) int64 {
	return shares.Floor().IntPart()
}

// Clamp bounds x to the closed interval [lo, hi].
func Clamp(x, lo, hi decimal.Decimal) decimal.Decimal {
	if x.LessThan(lo) {
		return lo
	}
	if x.GreaterThan(hi) {
		return hi
	}
	return x
}

// Sqrt computes the square root of a positive decimal through float64
// math.Sqrt (zero for zero or negative input), used by the square-root
// market-impact model.
// Decimal has no native Sqrt; the teacher's own Decimal type fell back to
// float64 for anything beyond +,-,*,/, and the square-root impact model is
// inherently an approximation, so we do the same here rather than pull in
// an arbitrary-precision math library for one call site.
func Sqrt(x decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() {
		return Zero
	}
	f, _ := x.Float64()
	return decimal.NewFromFloat(math.Sqrt(f))
}
