package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProtectionOrder represents a broker-side order as seen by the protection
// engine. Optional stop parameters are modeled as explicit nil-able fields:
// fixed stops carry StopPrice, trailing stops carry TrailPercent and, when the
// broker reports it, the current trail price (absent in paper/sandbox
// environments).
type ProtectionOrder struct {
	ID            string // Broker-assigned, opaque
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Kind          OrderKind
	Qty           decimal.Decimal
	Status        OrderStatus
	TimeInForce   TimeInForce
	StopPrice     *decimal.Decimal // Fixed stops only
	TrailPercent  *decimal.Decimal // Trailing stops only
	TrailPrice    *decimal.Decimal // Broker-computed high-water stop; may be absent
	SubmittedAt   time.Time
}

// IsProtective reports whether the order is an open sell-side stop of either
// kind, i.e. something the engine counts as protection for a long position.
func (o *ProtectionOrder) IsProtective() bool {
	if o.Side != Sell || !o.Status.IsOpen() {
		return false
	}
	return o.Kind == FixedStop || o.Kind == TrailingStop
}
