package domain

// OrderSide represents the side of an order (buy or sell).
// Protective orders managed by this system are always Sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderKind classifies the protective order types the engine manages.
type OrderKind string

const (
	// FixedStop is a stop order triggered at a predetermined absolute price.
	FixedStop OrderKind = "stop"
	// TrailingStop is a stop order whose trigger follows the position's
	// high-water mark, staying a fixed percent below it.
	TrailingStop OrderKind = "trailing_stop"
)

// OrderStatus represents the broker-side lifecycle state of an order.
// Open statuses are the only ones the protection engine ever acts on.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusAccepted        OrderStatus = "accepted"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusExpired         OrderStatus = "expired"
	StatusRejected        OrderStatus = "rejected"
)

// IsOpen reports whether the status counts as open on the broker's book.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case StatusNew, StatusAccepted, StatusPartiallyFilled:
		return true
	}
	return false
}

// TimeInForce represents an order's validity window.
type TimeInForce string

const (
	// Day orders expire at the end of the trading day. Fractional quantities
	// must use Day (broker constraint, not a design choice).
	Day TimeInForce = "day"
	// GTC orders persist until filled or cancelled.
	GTC TimeInForce = "gtc"
)
