package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
)

// StopOrderRequest describes a fixed stop submission.
type StopOrderRequest struct {
	Symbol      string
	Side        domain.OrderSide
	Qty         decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce domain.TimeInForce
}

// TrailingStopOrderRequest describes a trailing stop submission. Trailing
// orders always carry an integer quantity and GTC time-in-force; the
// normalizer enforces that before a request is built.
type TrailingStopOrderRequest struct {
	Symbol       string
	Side         domain.OrderSide
	Qty          decimal.Decimal
	TrailPercent decimal.Decimal
	TimeInForce  domain.TimeInForce
}

// BrokerClient defines the interface for interacting with the brokerage API.
// Connection management, authentication, transport retries and rate limiting
// are the implementation's concern; callers only see typed results and
// wrapped sentinel errors.
type BrokerClient interface {
	// GetAccount retrieves the account-level figures (equity, cash, buying power).
	GetAccount(ctx context.Context) (*domain.Account, error)

	// GetPositions retrieves all open positions in the account.
	GetPositions(ctx context.Context) ([]*domain.Position, error)

	// GetOpenOrders retrieves the open orders for one symbol, in the
	// broker's query order.
	GetOpenOrders(ctx context.Context, symbol string) ([]*domain.ProtectionOrder, error)

	// GetAllOpenOrders retrieves every open order in the account.
	GetAllOpenOrders(ctx context.Context) ([]*domain.ProtectionOrder, error)

	// SubmitStopOrder places a fixed stop order.
	SubmitStopOrder(ctx context.Context, req StopOrderRequest) (*domain.ProtectionOrder, error)

	// SubmitTrailingStopOrder places a trailing stop order.
	SubmitTrailingStopOrder(ctx context.Context, req TrailingStopOrderRequest) (*domain.ProtectionOrder, error)

	// CancelOrder cancels an open order by its broker-assigned ID.
	CancelOrder(ctx context.Context, orderID string) error
}
