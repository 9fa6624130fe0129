package protection

import (
	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
)

// RoundCurrency rounds a price to 2 decimal places using round-half-up,
// matching standard equity tick conventions (19.995 -> 20.00).
func RoundCurrency(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// IsFractional reports whether qty has a non-zero fractional part.
func IsFractional(qty decimal.Decimal) bool {
	return !qty.Equal(qty.Truncate(0))
}

// TimeInForceFor returns the time-in-force mandated by the broker for a stop
// order of the given quantity: fractional quantities must use DAY, integer
// quantities use GTC.
func TimeInForceFor(qty decimal.Decimal) domain.TimeInForce {
	if IsFractional(qty) {
		return domain.Day
	}
	return domain.GTC
}

// NormalizeTrailingQty converts a position quantity into one acceptable for a
// trailing stop, which cannot carry fractional shares. Fractional quantities
// are floored to the nearest integer; ok is false when the floored value is
// not positive, meaning the position is too small to protect with a trailing
// order.
func NormalizeTrailingQty(qty decimal.Decimal) (normalized decimal.Decimal, ok bool) {
	if IsFractional(qty) {
		qty = qty.Floor()
	}
	if !qty.IsPositive() {
		return decimal.Zero, false
	}
	return qty, true
}
