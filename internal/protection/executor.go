package protection

import (
	"context"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

// Executor is the engine's narrow view of the broker: submit and cancel,
// nothing else. No retries, no interpretation; failures come back as errors
// for the engine's rollback branching.
type Executor interface {
	SubmitStop(ctx context.Context, symbol string, qty, stopPrice decimal.Decimal, tif domain.TimeInForce) (*domain.ProtectionOrder, error)
	SubmitTrailing(ctx context.Context, symbol string, qty, trailPercent decimal.Decimal) (*domain.ProtectionOrder, error)
	Cancel(ctx context.Context, orderID string) error
}

type brokerExecutor struct {
	broker ports.BrokerClient
}

// NewExecutor wraps a broker client as an Executor.
func NewExecutor(broker ports.BrokerClient) Executor {
	return &brokerExecutor{broker: broker}
}

func (e *brokerExecutor) SubmitStop(ctx context.Context, symbol string, qty, stopPrice decimal.Decimal, tif domain.TimeInForce) (*domain.ProtectionOrder, error) {
	return e.broker.SubmitStopOrder(ctx, ports.StopOrderRequest{
		Symbol:      symbol,
		Side:        domain.Sell,
		Qty:         qty,
		StopPrice:   stopPrice,
		TimeInForce: tif,
	})
}

func (e *brokerExecutor) SubmitTrailing(ctx context.Context, symbol string, qty, trailPercent decimal.Decimal) (*domain.ProtectionOrder, error) {
	return e.broker.SubmitTrailingStopOrder(ctx, ports.TrailingStopOrderRequest{
		Symbol:       symbol,
		Side:         domain.Sell,
		Qty:          qty,
		TrailPercent: trailPercent,
		TimeInForce:  domain.GTC,
	})
}

func (e *brokerExecutor) Cancel(ctx context.Context, orderID string) error {
	return e.broker.CancelOrder(ctx, orderID)
}
